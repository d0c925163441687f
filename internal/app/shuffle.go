package app

import "quiz-practice-service/internal/domain"

// shuffleQuestions permutes qs in place (Fisher-Yates): for i from len-1 down to 1,
// swap qs[i] with qs[j] where j is uniform in [0, i].
func shuffleQuestions(qs []domain.Question, intn func(n int) int) {
	for i := len(qs) - 1; i > 0; i-- {
		j := intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

// pickRandom draws count questions without replacement from a shuffled copy of candidates.
// Candidates come from a bounded prefetch, so this is uniform over the prefetch only.
func pickRandom(candidates []domain.Question, count int, intn func(n int) int) ([]domain.Question, error) {
	if len(candidates) < count {
		return nil, domain.NotEnoughQuestions(count, len(candidates))
	}
	shuffled := make([]domain.Question, len(candidates))
	copy(shuffled, candidates)
	shuffleQuestions(shuffled, intn)
	return shuffled[:count], nil
}
