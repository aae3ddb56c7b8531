package services

import (
	"math/rand/v2"
	"slices"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Shuffler is the randomness source used to permute questions.
// *rand.Rand satisfies it, which lets tests pass a seeded source.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

// Shuffle uses the goroutine-safe top-level generator
func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// DefaultShuffler is safe for concurrent use
var DefaultShuffler Shuffler = globalShuffler{}

// SanitizeQuestion strips everything that reveals the answer
func SanitizeQuestion(q models.Question) models.SanitizedQuestion {
	options := make([]models.SanitizedOption, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, models.SanitizedOption{Text: opt.Text})
	}

	tags := slices.Clone([]string(q.Tags))
	if tags == nil {
		tags = []string{}
	}

	return models.SanitizedQuestion{
		ID:         q.ID,
		Text:       q.Text,
		Type:       q.Type,
		Options:    options,
		Points:     q.Points,
		Difficulty: q.Difficulty,
		Tags:       tags,
	}
}

// SanitizeQuestions returns the student view of a test's questions.
// The input slice is never reordered; a fresh permutation is drawn per call when shuffle is set.
func SanitizeQuestions(questions []models.Question, shuffle bool, rng Shuffler) []models.SanitizedQuestion {
	out := make([]models.SanitizedQuestion, len(questions))
	for i, q := range questions {
		out[i] = SanitizeQuestion(q)
	}

	if shuffle && len(out) > 1 {
		if rng == nil {
			rng = DefaultShuffler
		}
		rng.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	return out
}
