package service

import (
	"math"
	"sort"

	"github.com/quizarena/quizarena-backend/internal/model"
)

// BuildLeaderboard groups results by learner name and ranks learners by total
// score, highest first. Ties are ordered by name.
func BuildLeaderboard(results []model.Result) []model.LeaderboardEntry {
	byLearner := make(map[string]*model.LeaderboardEntry)
	var order []string

	for _, r := range results {
		e, ok := byLearner[r.LearnerName]
		if !ok {
			e = &model.LeaderboardEntry{LearnerName: r.LearnerName, Quizzes: []model.LeaderboardQuiz{}}
			byLearner[r.LearnerName] = e
			order = append(order, r.LearnerName)
		}
		e.TotalScore += r.Score
		e.Quizzes = append(e.Quizzes, model.LeaderboardQuiz{
			QuizTitle: r.QuizTitle,
			Score:     r.Score,
			DateTaken: r.DateTaken,
		})
	}

	entries := make([]model.LeaderboardEntry, 0, len(order))
	for _, name := range order {
		entries = append(entries, *byLearner[name])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].LearnerName < entries[j].LearnerName
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// BuildQuizPerformance computes, per quiz title, the share of questions
// answered correctly across every attempt.
func BuildQuizPerformance(results []model.Result) []model.QuizPerformance {
	byQuiz := make(map[string]*model.QuizPerformance)
	var order []string

	for _, r := range results {
		p, ok := byQuiz[r.QuizTitle]
		if !ok {
			p = &model.QuizPerformance{QuizTitle: r.QuizTitle}
			byQuiz[r.QuizTitle] = p
			order = append(order, r.QuizTitle)
		}
		p.TotalScore += r.Score
		p.TotalQuestions += r.TotalQuestions
	}

	sort.Strings(order)
	out := make([]model.QuizPerformance, 0, len(order))
	for _, title := range order {
		p := byQuiz[title]
		if p.TotalQuestions > 0 {
			p.Percentage = round2(float64(p.TotalScore) / float64(p.TotalQuestions) * 100)
		}
		out = append(out, *p)
	}
	return out
}

// BuildAttempts counts attempts per quiz title for each learner.
func BuildAttempts(results []model.Result) []model.LearnerAttempts {
	byLearner := make(map[string]map[string]int)
	for _, r := range results {
		counts, ok := byLearner[r.LearnerName]
		if !ok {
			counts = make(map[string]int)
			byLearner[r.LearnerName] = counts
		}
		counts[r.QuizTitle]++
	}

	names := make([]string, 0, len(byLearner))
	for name := range byLearner {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.LearnerAttempts, 0, len(names))
	for _, name := range names {
		out = append(out, model.LearnerAttempts{LearnerName: name, Attempts: byLearner[name]})
	}
	return out
}

// BuildCompletion reports per learner how many attempts ended with every
// question correct.
func BuildCompletion(results []model.Result) []model.LearnerCompletion {
	byLearner := make(map[string]*model.LearnerCompletion)
	var names []string

	for _, r := range results {
		c, ok := byLearner[r.LearnerName]
		if !ok {
			c = &model.LearnerCompletion{LearnerName: r.LearnerName}
			byLearner[r.LearnerName] = c
			names = append(names, r.LearnerName)
		}
		c.Attempted++
		if r.TotalQuestions > 0 && r.Score == r.TotalQuestions {
			c.Completed++
		}
	}

	sort.Strings(names)
	out := make([]model.LearnerCompletion, 0, len(names))
	for _, name := range names {
		c := byLearner[name]
		c.CompletionRate = round2(float64(c.Completed) / float64(c.Attempted) * 100)
		out = append(out, *c)
	}
	return out
}

// BuildDashboard summarizes a creator's quizzes. AverageScore is the mean raw
// score over every result, or 0 when there are none.
func BuildDashboard(createdBy string, totalQuizzes int, results []model.Result) model.Dashboard {
	d := model.Dashboard{CreatedBy: createdBy, TotalQuizzes: totalQuizzes}

	learners := make(map[string]struct{})
	sum := 0
	for _, r := range results {
		learners[r.LearnerID] = struct{}{}
		sum += r.Score
	}
	d.UniqueLearners = len(learners)
	if len(results) > 0 {
		d.AverageScore = round2(float64(sum) / float64(len(results)))
	}
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
