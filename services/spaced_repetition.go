package services

import (
	goContext "context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/lingokeep/progress_api/dto"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SpacedRepetitionService schedules vocabulary reviews with SM-2 and keeps
// review-session state in Redis so sessions survive restarts and replicas.
type SpacedRepetitionService struct {
	context.DefaultService

	redisSvc *RedisService

	db    *gorm.DB
	cards *repositories.VocabularyRepository
	now   func() time.Time
}

const SPACED_REPETITION_SVC = "spaced_repetition_svc"

const (
	qualityHistorySize   = 5
	reviewSessionTTL     = 30 * time.Minute
	reviewSessionMaxSize = 20
)

func (svc SpacedRepetitionService) Id() string {
	return SPACED_REPETITION_SVC
}

func (svc *SpacedRepetitionService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *SpacedRepetitionService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.initWithDb(sqlSvc.Db())
	return nil
}

func (svc *SpacedRepetitionService) initWithDb(db *gorm.DB) {
	svc.db = db
	svc.cards = repositories.NewVocabularyRepository(db)
	if svc.now == nil {
		svc.now = time.Now
	}
}

// SaveWord ensures a card exists for the word; new cards are due immediately.
func (svc *SpacedRepetitionService) SaveWord(userID, word string) (*model.VocabularyCard, bool, error) {
	return svc.cards.GetOrCreateCard(userID, word, svc.now())
}

// ScheduleReview applies one SM-2 step to the card and persists the result.
func (svc *SpacedRepetitionService) ScheduleReview(cardID string, quality int) (*dto.ReviewResponse, error) {
	q := ReviewQuality(quality)
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", shared.ErrInvalidQuality, quality)
	}

	card, err := svc.cards.GetCard(cardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: card %s", shared.ErrNotFound, cardID)
		}
		return nil, err
	}

	ef, interval, nextDate := nextReview(card.EaseFactor, card.IntervalDays, card.ReviewCount, q, svc.now())

	card.EaseFactor = ef
	card.IntervalDays = interval
	card.NextReviewDate = nextDate
	card.ReviewCount++
	card.QualityHistory = appendQuality(card.QualityHistory, quality)

	if err := svc.cards.UpdateCard(card); err != nil {
		return nil, err
	}

	reviewsScheduledTotal.WithLabelValues(q.String()).Inc()

	return &dto.ReviewResponse{
		CardID:         card.ID,
		Word:           card.Word,
		EaseFactor:     card.EaseFactor,
		IntervalDays:   card.IntervalDays,
		NextReviewDate: card.NextReviewDate,
		ReviewCount:    card.ReviewCount,
	}, nil
}

func (svc *SpacedRepetitionService) DueCards(userID string, limit int) ([]model.VocabularyCard, error) {
	if limit <= 0 {
		limit = reviewSessionMaxSize
	}
	return svc.cards.DueCards(userID, svc.now(), limit)
}

func (svc *SpacedRepetitionService) MasteredCount(userID string) (int64, error) {
	return svc.cards.CountMastered(userID)
}

func (svc *SpacedRepetitionService) CardCount(userID string) (int64, error) {
	return svc.cards.CountCards(userID)
}

// ==================== REVIEW SESSIONS ====================

// reviewSession is the Redis-persisted cursor over a batch of due cards.
type reviewSession struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CardIDs   []string  `json:"card_ids"`
	Position  int       `json:"position"`
	StartedAt time.Time `json:"started_at"`
}

func reviewSessionKey(sessionID string) string {
	return "review_session:" + sessionID
}

// StartReviewSession snapshots the user's due cards into a TTL-bound session.
func (svc *SpacedRepetitionService) StartReviewSession(ctx goContext.Context, userID string) (*dto.ReviewSessionResponse, error) {
	cards, err := svc.DueCards(userID, reviewSessionMaxSize)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return &dto.ReviewSessionResponse{Done: true}, nil
	}

	id, _ := uuid.NewV7()
	session := &reviewSession{
		SessionID: id.String(),
		UserID:    userID,
		StartedAt: svc.now(),
	}
	for _, card := range cards {
		session.CardIDs = append(session.CardIDs, card.ID)
	}

	if err := svc.redisSvc.Set(ctx, reviewSessionKey(session.SessionID), session, reviewSessionTTL); err != nil {
		return nil, err
	}

	return &dto.ReviewSessionResponse{
		SessionID: session.SessionID,
		CardsLeft: len(session.CardIDs),
		CardID:    cards[0].ID,
		Word:      cards[0].Word,
	}, nil
}

// SubmitReview grades the session's current card and advances the cursor.
func (svc *SpacedRepetitionService) SubmitReview(ctx goContext.Context, sessionID string, quality int) (*dto.ReviewSessionResponse, error) {
	var session reviewSession
	found, err := svc.redisSvc.GetJSON(ctx, reviewSessionKey(sessionID), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: review session %s", shared.ErrNotFound, sessionID)
	}

	if session.Position >= len(session.CardIDs) {
		return &dto.ReviewSessionResponse{SessionID: sessionID, Done: true}, nil
	}

	if _, err := svc.ScheduleReview(session.CardIDs[session.Position], quality); err != nil {
		return nil, err
	}

	session.Position++
	if session.Position >= len(session.CardIDs) {
		if delErr := svc.redisSvc.Delete(ctx, reviewSessionKey(sessionID)); delErr != nil {
			log.Printf("Failed to drop finished review session %s: %v", sessionID, delErr)
		}
		return &dto.ReviewSessionResponse{SessionID: sessionID, Done: true}, nil
	}

	if err := svc.redisSvc.Set(ctx, reviewSessionKey(sessionID), &session, reviewSessionTTL); err != nil {
		return nil, err
	}

	card, err := svc.cards.GetCard(session.CardIDs[session.Position])
	if err != nil {
		return nil, err
	}

	return &dto.ReviewSessionResponse{
		SessionID: sessionID,
		CardsLeft: len(session.CardIDs) - session.Position,
		CardID:    card.ID,
		Word:      card.Word,
	}, nil
}

func appendQuality(raw json.RawMessage, quality int) json.RawMessage {
	history := []int{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &history); err != nil {
			history = []int{}
		}
	}

	history = append(history, quality)
	if len(history) > qualityHistorySize {
		history = history[len(history)-qualityHistorySize:]
	}

	out, err := json.Marshal(history)
	if err != nil {
		return raw
	}
	return out
}
