package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/quizarena/quizarena-backend/internal/attempt"
	"github.com/quizarena/quizarena-backend/internal/client"
	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/grading"
	"github.com/quizarena/quizarena-backend/internal/logger"
	"github.com/quizarena/quizarena-backend/internal/model"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	scoreColor = color.New(color.FgGreen, color.Bold)
)

func main() {
	cfg := config.Load()

	var (
		quizID      int64
		learnerID   string
		learnerName string
		apiURL      string
	)
	flag.Int64Var(&quizID, "quiz", 0, "Quiz ID to take")
	flag.StringVar(&learnerID, "learner", "", "Learner ID")
	flag.StringVar(&learnerName, "name", "", "Learner display name")
	flag.StringVar(&apiURL, "api", cfg.APIBaseURL, "API base URL")
	flag.Parse()

	if quizID <= 0 || learnerID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if learnerName == "" {
		learnerName = learnerID
	}

	// Logs go to stderr so they never interleave with the quiz on stdout.
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(strings.TrimRight(apiURL, "/"), cfg.APITimeout)

	quiz, err := api.FetchQuiz(ctx, quizID)
	if err != nil {
		errColor.Fprintf(os.Stderr, "Could not load quiz %d: %v\n", quizID, err)
		os.Exit(1)
	}
	if !quiz.Available(time.Now()) {
		errColor.Fprintf(os.Stderr, "Quiz %d is not open right now.\n", quizID)
		os.Exit(1)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	a := attempt.New(quiz, learnerID, learnerName, api, log, attempt.Options{
		Tick:           cfg.CountdownTick,
		DefaultSeconds: int(cfg.DefaultAttemptDuration / time.Second),
		OnTick:         printRemaining,
		OnGraded: func(score grading.Score, trigger model.Trigger) {
			if trigger == model.TriggerTimer {
				warnColor.Println("\nTime is up, submitting your answers.")
			}
			scoreColor.Printf("Score: %d / %d\n", score.Correct, score.Total)
		},
	})

	printQuiz(quiz, a.Remaining())
	a.Start(ctx)
	defer a.Stop()

	lines := make(chan string)
	go readLines(lines)

loop:
	for {
		if interactive {
			fmt.Print("> ")
		}
		select {
		case <-a.Done():
			break loop
		case <-ctx.Done():
			warnColor.Println("\nInterrupted, submitting your answers.")
			a.Submit(context.Background())
			break loop
		case line, ok := <-lines:
			if !ok {
				a.Submit(ctx)
				break loop
			}
			if handleLine(ctx, a, quiz, line) {
				break loop
			}
		}
	}

	<-a.Done()
	select {
	case <-a.Reported():
	case <-time.After(cfg.APITimeout + time.Second):
		warnColor.Fprintln(os.Stderr, "Score report is still pending, giving up.")
	}
}

// handleLine applies one command. It reports whether the attempt is over.
//
//	<n> <option number>   pick an option (toggles for multi-select)
//	<n> <text>            answer a fill-in-the-blank question
//	submit                grade now
func handleLine(ctx context.Context, a *attempt.Attempt, quiz *model.Quiz, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "submit":
		a.Submit(ctx)
		return true
	case "help":
		printHelp()
		return false
	}

	numStr, rest, _ := strings.Cut(line, " ")
	n, err := strconv.Atoi(numStr)
	if err != nil || n < 1 || n > len(quiz.Questions) {
		errColor.Printf("Unknown question %q. Type help for usage.\n", numStr)
		return false
	}
	q := quiz.Questions[n-1]
	rest = strings.TrimSpace(rest)
	if rest == "" {
		errColor.Println("Missing answer.")
		return false
	}

	if q.Type == model.QuestionTypeFreeText {
		err = a.SetText(q.ID.String(), rest)
	} else {
		idx, convErr := strconv.Atoi(rest)
		if convErr != nil || idx < 1 || idx > len(q.Options) {
			errColor.Printf("Pick an option between 1 and %d.\n", len(q.Options))
			return false
		}
		err = a.Choose(q.ID.String(), q.Options[idx-1].OptionText)
	}
	if err != nil {
		errColor.Println(err)
		return errors.Is(err, attempt.ErrAlreadySubmitted)
	}

	fmt.Printf("Q%d: %s\n", n, strings.Join(a.Answers()[q.ID.String()], ", "))
	return false
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func printQuiz(quiz *model.Quiz, seconds int) {
	titleColor.Println(quiz.Title)
	if quiz.Description != "" {
		fmt.Println(quiz.Description)
	}
	fmt.Printf("%d questions, %s to finish.\n\n", len(quiz.Questions), formatSeconds(seconds))

	for i, q := range quiz.Questions {
		fmt.Printf("%d. %s", i+1, q.QuestionText)
		if q.Type == model.QuestionTypeMultiSelect {
			fmt.Print(" (select all that apply)")
		}
		fmt.Println()
		for j, o := range q.Options {
			fmt.Printf("   %d) %s\n", j+1, o.OptionText)
		}
	}
	fmt.Println()
	printHelp()
}

func printHelp() {
	fmt.Println("Answer with \"<question> <option>\" or \"<question> <text>\". Type submit when done.")
}

// printRemaining announces the time left at each full minute and during the
// last ten seconds.
func printRemaining(remaining int) {
	if remaining > 10 && remaining%60 != 0 {
		return
	}
	if remaining == 0 {
		return
	}
	warnColor.Printf("\n%s left\n", formatSeconds(remaining))
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
