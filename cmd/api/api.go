package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/config"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/KAsare1/commonthread-server/service/availability"
	"github.com/KAsare1/commonthread-server/service/business"
	"github.com/KAsare1/commonthread-server/service/commitment"
	"github.com/KAsare1/commonthread-server/service/dashboard"
	"github.com/KAsare1/commonthread-server/service/eligibility"
	"github.com/KAsare1/commonthread-server/service/email"
	"github.com/KAsare1/commonthread-server/service/favorites"
	"github.com/KAsare1/commonthread-server/service/metrics"
	notification "github.com/KAsare1/commonthread-server/service/notifications"
	"github.com/KAsare1/commonthread-server/service/opportunity"
	"github.com/KAsare1/commonthread-server/service/reminders"
	"github.com/KAsare1/commonthread-server/service/reviews"
	"github.com/KAsare1/commonthread-server/service/user"
	"github.com/KAsare1/commonthread-server/service/ws"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

type APIServer struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger

	hub      *ws.Hub
	notifier *notification.Notifier
	mailer   *email.Mailer
}

func NewApiServer(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *APIServer {
	hub := ws.NewHub(logger)
	notifier := notification.NewNotifier(notification.NewGormStore(db), hub, expo.NewPushClient(nil), logger.Named("notify"))
	mailer := email.NewMailer(email.Settings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SenderAddress(),
	}, logger.Named("email"))

	return &APIServer{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		hub:      hub,
		notifier: notifier,
		mailer:   mailer,
	}
}

// Handler builds the full middleware-wrapped router.
func (s *APIServer) Handler() (http.Handler, error) {
	policy, err := eligibility.ParsePolicy(s.cfg.AutoApprovePolicy)
	if err != nil {
		return nil, err
	}
	auth := utils.NewAuth(s.cfg.SecretKey, s.cfg.TokenTTL)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/",
		http.FileServer(http.Dir(filepath.Join(s.cfg.UploadDir, utils.ImageSubdir)))))

	subrouter := router.PathPrefix("/api/v1").Subrouter()

	user.NewHandler(user.NewGormStore(s.db), auth, s.mailer, s.logger).RegisterRoutes(subrouter)
	availability.NewAvailabilityHandler(availability.NewGormStore(s.db), auth, s.logger).RegisterRoutes(subrouter)
	business.NewBusinessHandler(business.NewGormStore(s.db), auth, s.cfg.UploadDir, s.logger).RegisterRoutes(subrouter)
	opportunity.NewOpportunityHandler(opportunity.NewGormStore(s.db), auth, s.logger).RegisterRoutes(subrouter)

	commitmentService := commitment.NewService(commitment.NewGormStore(s.db), s.notifier, s.mailer, s.logger.Named("commitment"), commitment.Options{
		Policy:              policy,
		ReleaseSlotOnCancel: s.cfg.ReleaseSlotOnCancel,
	})
	commitment.NewCommitmentHandler(commitmentService, auth, s.logger).RegisterRoutes(subrouter)

	notification.NewNotificationHandler(notification.NewGormStore(s.db), s.notifier, auth, s.hub.ServeWS, s.logger).RegisterRoutes(subrouter)
	reviews.NewReviewHandler(reviews.NewGormStore(s.db), auth, s.logger).RegisterRoutes(subrouter)
	favorites.NewFavoriteHandler(favorites.NewGormStore(s.db), auth, s.logger).RegisterRoutes(subrouter)
	dashboard.NewDashboardHandler(dashboard.NewGormStore(s.db), auth, s.logger).RegisterRoutes(subrouter)

	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = handlers.CombinedLoggingHandler(zap.NewStdLog(s.logger.Named("http")).Writer(), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger.Named("recovery"))),
		handlers.PrintRecoveryStack(s.cfg.Development()),
	)(h)
	return h, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests and stops
// the background workers.
func (s *APIServer) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	metrics.Register()
	go s.hub.Run(ctx)

	scheduler := reminders.NewScheduler(s.logger)
	job := reminders.NewJob(reminders.NewGormStore(s.db), s.notifier, s.mailer, s.logger.Named("reminders"))
	if _, err := scheduler.ScheduleJob(ctx, s.cfg.ReminderSchedule, job); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	server := &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server running", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
