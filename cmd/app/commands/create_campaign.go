package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/allisson/lottery/internal/lottery/domain"
	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
)

// campaignTimeLayouts are accepted by --start and --end, most specific first.
var campaignTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseCampaignTime parses value in loc unless the layout carries its own offset.
func parseCampaignTime(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range campaignTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time %q: use RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD",
		value,
	)
}

// RunCreateCampaign stores a new campaign. Window bounds without an explicit
// offset are read in timezone and persisted in UTC.
func RunCreateCampaign(
	ctx context.Context,
	campaignUseCase lotteryUseCase.CampaignUseCase,
	logger *slog.Logger,
	writer io.Writer,
	name string,
	start string,
	end string,
	timezone string,
	successTarget int,
	format string,
) error {
	// Resolve the timezone used for bounds without an offset
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	startTime, err := parseCampaignTime(start, loc)
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	endTime, err := parseCampaignTime(end, loc)
	if err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}

	// Create input
	campaign := &domain.Campaign{
		Name:          name,
		StartUTC:      startTime,
		EndUTC:        endTime,
		SuccessTarget: successTarget,
	}

	if err := campaignUseCase.Create(ctx, campaign); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	logger.Info("campaign created",
		slog.Int64("campaign_id", campaign.ID),
		slog.String("name", campaign.Name),
		slog.Time("start_utc", campaign.StartUTC),
		slog.Time("end_utc", campaign.EndUTC),
		slog.Int("success_target", campaign.SuccessTarget),
	)

	// Output result
	if format == "json" {
		return writeJSON(writer, campaign)
	}

	_, _ = fmt.Fprintf(writer, "Campaign created successfully\n")
	_, _ = fmt.Fprintf(writer, "ID: %d\n", campaign.ID)
	_, _ = fmt.Fprintf(writer, "Name: %s\n", campaign.Name)
	_, _ = fmt.Fprintf(writer, "Start (UTC): %s\n", campaign.StartUTC.Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "End (UTC): %s\n", campaign.EndUTC.Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "Success target: %d\n", campaign.SuccessTarget)
	return nil
}
