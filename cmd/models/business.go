package models

import "gorm.io/gorm"

type Business struct {
	gorm.Model
	OwnerID         uint    `gorm:"column:owner_id;not null;uniqueIndex" json:"owner_id"`
	Name            string  `gorm:"column:name;size:255;not null" json:"name"`
	Description     string  `gorm:"column:description;type:text" json:"description"`
	Category        string  `gorm:"column:category;size:100;index" json:"category"`
	Address         string  `gorm:"column:address;size:500" json:"address"`
	Phone           string  `gorm:"column:phone;size:30" json:"phone"`
	Website         string  `gorm:"column:website;size:255" json:"website"`
	LogoURL         string  `gorm:"column:logo_url;size:500" json:"logo_url"`
	MinVolunteerAge int     `gorm:"column:min_volunteer_age;not null;default:0" json:"min_volunteer_age"`
	AverageRating   float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalReviews    int     `gorm:"column:total_reviews;default:0" json:"total_reviews"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"-"`
}

type Review struct {
	gorm.Model
	UserID     uint   `gorm:"column:user_id;not null;uniqueIndex:idx_review_user_business" json:"user_id"`
	BusinessID uint   `gorm:"column:business_id;not null;index;uniqueIndex:idx_review_user_business" json:"business_id"`
	UserName   string `gorm:"column:user_name;size:255" json:"user_name"`
	Rating     int    `gorm:"column:rating;not null" json:"rating"`
	Comment    string `gorm:"column:comment;type:text" json:"comment"`

	User     *User     `gorm:"foreignKey:UserID" json:"-"`
	Business *Business `gorm:"foreignKey:BusinessID;constraint:OnDelete:CASCADE" json:"-"`
}

type Favorite struct {
	gorm.Model
	UserID       uint   `gorm:"column:user_id;not null;uniqueIndex:idx_favorite_user_business" json:"user_id"`
	BusinessID   uint   `gorm:"column:business_id;not null;uniqueIndex:idx_favorite_user_business" json:"business_id"`
	BusinessName string `gorm:"column:business_name;size:255" json:"business_name"`

	Business *Business `gorm:"foreignKey:BusinessID;constraint:OnDelete:CASCADE" json:"-"`
}
