package app

import (
	"math/rand"

	"live-quiz-service/internal/domain"
)

// BuildQuestions draws a randomized, duplicate-free set of count words from
// the combined pool and synthesizes multiple-choice questions for them.
// Distractors come from the same pool (consistent difficulty), exclude the
// correct word and any identical meaning, and are drawn without replacement.
// The correct option's position is shuffled per question. Pure with respect
// to room state; rnd is the only source of nondeterminism.
func BuildQuestions(rnd *rand.Rand, pool []domain.Word, count, optionCount int) ([]domain.Question, error) {
	if count <= 0 || len(pool) < count {
		return nil, domain.ErrInsufficientContent
	}
	if optionCount < 2 {
		optionCount = 2
	}

	shuffled := append([]domain.Word(nil), pool...)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	questions := make([]domain.Question, 0, count)
	for _, word := range shuffled[:count] {
		distractors := pickDistractors(rnd, shuffled, word, optionCount-1)

		options := make([]string, 0, len(distractors)+1)
		options = append(options, distractors...)
		correct := rnd.Intn(len(options) + 1)
		options = append(options[:correct], append([]string{word.Meaning}, options[correct:]...)...)

		questions = append(questions, domain.Question{
			Prompt:       word.Term,
			Options:      options,
			CorrectIndex: correct,
		})
	}
	return questions, nil
}

// pickDistractors samples up to n wrong meanings without replacement. A tiny
// pool yields fewer options rather than padding with fabricated text.
func pickDistractors(rnd *rand.Rand, pool []domain.Word, correct domain.Word, n int) []string {
	candidates := make([]string, 0, len(pool))
	seen := map[string]struct{}{correct.Meaning: {}}
	for _, w := range pool {
		if w.ID == correct.ID {
			continue
		}
		if _, dup := seen[w.Meaning]; dup {
			continue
		}
		seen[w.Meaning] = struct{}{}
		candidates = append(candidates, w.Meaning)
	}
	rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
