package service

import (
	"context"
	"math"
	"time"

	"github.com/sakif/secret-santa/internal/repository"
)

// Stats is the admin dashboard.
type Stats struct {
	TotalUsers         int       `json:"totalUsers"`
	TotalPairings      int       `json:"totalPairings"`
	TotalGifts         int       `json:"totalGifts"`
	RevealedCount      int       `json:"revealedCount"`
	LoggedInCount      int       `json:"loggedInCount"`
	GiftSubmissionRate float64   `json:"giftSubmissionRate"`
	RevealRate         float64   `json:"revealRate"`
	PairingLocked      bool      `json:"pairingLocked"`
	RevealLocked       bool      `json:"revealLocked"`
	RevealDate         time.Time `json:"revealDate"`
}

type StatsService struct {
	repo     repository.StatsRepository
	settings *SettingsService
}

func NewStatsService(repo repository.StatsRepository, settings *SettingsService) *StatsService {
	return &StatsService{repo: repo, settings: settings}
}

// Get computes the dashboard. Rates are percentages of active participants,
// rounded to one decimal.
func (s *StatsService) Get(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalUsers:         counts.ActiveParticipants,
		TotalPairings:      counts.Pairings,
		TotalGifts:         counts.Gifts,
		RevealedCount:      counts.Revealed,
		LoggedInCount:      counts.LoggedIn,
		GiftSubmissionRate: percent(counts.Gifts, counts.ActiveParticipants),
		RevealRate:         percent(counts.Revealed, counts.ActiveParticipants),
		PairingLocked:      st.PairingLocked,
		RevealLocked:       st.RevealLocked,
		RevealDate:         st.RevealDate,
	}, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}
