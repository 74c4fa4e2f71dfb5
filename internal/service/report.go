package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/tubeclone/internal/apperror"
	"github.com/sakif/tubeclone/internal/model"
	"github.com/sakif/tubeclone/internal/notify"
	"github.com/sakif/tubeclone/internal/repository"
)

const (
	emailTimeout = 15 * time.Second
	watchURL     = "https://www.youtube.com/watch?v="
)

// EmailObserver counts notification failures. telemetry.Metrics implements it.
type EmailObserver interface {
	EmailFailed()
}

type nopEmailObserver struct{}

func (nopEmailObserver) EmailFailed() {}

// ReportService files video reports and confirms them by email.
type ReportService struct {
	repo       repository.ReportRepository
	catalog    Catalog
	sender     notify.Sender
	historyURL string
	observer   EmailObserver
	logger     *slog.Logger
	now        func() time.Time
}

// NewReportService builds the service. historyURL is linked from the
// confirmation email; observer may be nil.
func NewReportService(repo repository.ReportRepository, catalog Catalog, sender notify.Sender, historyURL string, observer EmailObserver, logger *slog.Logger) *ReportService {
	if observer == nil {
		observer = nopEmailObserver{}
	}
	return &ReportService{
		repo:       repo,
		catalog:    catalog,
		sender:     sender,
		historyURL: historyURL,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ReportService) Reasons(ctx context.Context) ([]model.ReportReason, error) {
	reasons, err := s.repo.ListReportReasons(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing report reasons: %w", err)
	}
	return reasons, nil
}

func (s *ReportService) Reports(ctx context.Context, userID string) ([]model.Report, error) {
	reports, err := s.repo.ListReports(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return reports, nil
}

// ReportVideo stores the report, replacing any earlier one by the same user
// for the same video, then emails a confirmation. The email is best-effort:
// once the report is saved a send failure is logged and counted, not
// returned.
func (s *ReportService) ReportVideo(ctx context.Context, user *model.User, videoID, reasonID string) (*model.Report, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, apperror.ValidationFailed("videoId", "video ID is required")
	}
	if strings.TrimSpace(reasonID) == "" {
		return nil, apperror.ValidationFailed("reasonId", "report reason is required")
	}

	reason, err := s.repo.GetReportReason(ctx, reasonID)
	if err != nil {
		return nil, err
	}

	video, err := s.catalog.Video(ctx, videoID)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		UserID:      user.ID,
		VideoID:     videoID,
		ReasonID:    reason.ID,
		ReasonTitle: reason.Label,
		Status:      model.ReportStatusLive,
		Type:        model.ReportTypeVideo,
		CreatedAt:   s.now().UTC(),
	}
	if video.Snippet != nil {
		report.VideoTitle = video.Snippet.Title
		report.ChannelTitle = video.Snippet.ChannelTitle
	}

	if err := s.repo.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	s.logger.Info("video reported",
		slog.String("userID", user.ID),
		slog.String("videoID", videoID),
		slog.String("reasonID", reason.ID),
	)

	s.sendConfirmation(ctx, user, report)
	return report, nil
}

func (s *ReportService) sendConfirmation(ctx context.Context, user *model.User, report *model.Report) {
	greeting := user.Channel.DisplayName
	if greeting == "" {
		greeting = user.Email
	}

	subject, body, err := notify.RenderReportConfirmation(notify.ReportConfirmation{
		Greeting:     greeting,
		VideoTitle:   report.VideoTitle,
		ChannelTitle: report.ChannelTitle,
		ReasonTitle:  report.ReasonTitle,
		VideoURL:     watchURL + report.VideoID,
		HistoryURL:   s.historyURL,
	})
	if err == nil {
		// The report is already saved; a client disconnect must not cut
		// the email short.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
		defer cancel()
		err = s.sender.Send(sendCtx, user.Email, subject, body)
	}
	if err != nil {
		s.observer.EmailFailed()
		s.logger.Error("report confirmation email failed",
			slog.String("userID", user.ID),
			slog.String("videoID", report.VideoID),
			slog.String("error", err.Error()),
		)
	}
}
