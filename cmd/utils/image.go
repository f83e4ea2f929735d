package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxImageSize = 5 << 20 // 5 MB
	ImageSubdir  = "images"
)

// SaveImage stores an uploaded image under dir/images and returns its URL path.
func SaveImage(dir string, file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxImageSize {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", MaxImageSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !isValidImageType(ext) {
		return "", fmt.Errorf("invalid file type: %s", ext)
	}

	imageDir := filepath.Join(dir, ImageSubdir)
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)

	dst, err := os.Create(filepath.Join(imageDir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return "/images/" + filename, nil
}

func isValidImageType(ext string) bool {
	validTypes := map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".gif":  true,
		".webp": true,
	}
	return validTypes[ext]
}

// DeleteImage removes a previously saved image. Missing files are ignored.
func DeleteImage(dir, imageURL string) error {
	if imageURL == "" {
		return nil
	}
	filePath := filepath.Join(dir, ImageSubdir, filepath.Base(imageURL))
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(filePath)
}
