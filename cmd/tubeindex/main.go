package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/vrsandeep/tubeindex/internal/core"
	"github.com/vrsandeep/tubeindex/internal/models"
	"github.com/vrsandeep/tubeindex/internal/simulator"
)

var version = "dev"

func main() {
	log.SetOutput(os.Stderr)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "submit":
		err = cmdSubmit(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "login":
		err = cmdLogin(os.Args[2:])
	case "logout":
		err = cmdLogout(os.Args[2:])
	case "serve-sim":
		err = cmdServeSim(os.Args[2:])
	case "version":
		fmt.Printf("tubeindex %s\n", version)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cerr *models.ClassifiedError
		if errors.As(err, &cerr) {
			fmt.Fprintf(os.Stderr, "%s\n", cerr.Hint())
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tubeindex <command> [flags]

Commands:
  submit <youtube-url>   Submit a video for transcript indexing and follow progress
  history                Show recent submissions
  login -token <token>   Validate a Google access token and store it
  logout                 Clear the stored credential and notify the server
  serve-sim              Run the local service simulator
  version                Print the version`)
}

func cmdSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	deadline := fs.Duration("deadline", 10*time.Minute, "overall wait for the submission to settle")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("submit requires exactly one YouTube URL")
	}
	rawURL := fs.Arg(0)

	app, err := core.New(version)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *deadline)
	defer cancel()

	sub, err := app.Coordinator.Submit(ctx, rawURL, app.Config.Domains, func(u models.ProgressUpdate) {
		if u.Total > 0 {
			fmt.Printf("  %-22s %3.0f%%  %s (%d/%d)\n", u.Stage, u.Progress, u.Message, u.Current, u.Total)
			return
		}
		fmt.Printf("  %-22s %3.0f%%  %s\n", u.Stage, u.Progress, u.Message)
	})
	if err != nil {
		return err
	}

	recordID, saveErr := app.Store.SaveSubmission(sub.VideoID(), rawURL)
	if saveErr != nil {
		log.Printf("Warning: could not record submission: %v", saveErr)
	}

	fmt.Printf("Submitted %s, waiting for result...\n", sub.VideoID())
	outcome, err := sub.Wait(ctx)
	if err != nil {
		return fmt.Errorf("gave up waiting for a result: %w", err)
	}

	if saveErr == nil {
		if err := app.Store.UpdateSubmissionOutcome(recordID, outcome); err != nil {
			log.Printf("Warning: could not update submission record: %v", err)
		}
	}

	if !outcome.OK() {
		if outcome.Err.Kind == models.ErrKindAuthentication {
			// The stored token was rejected; drop it so the next run
			// starts clean.
			if err := app.Auth.Invalidate(); err != nil {
				log.Printf("Warning: could not clear credential: %v", err)
			}
		}
		return outcome.Err
	}

	fmt.Printf("Done: %q indexed into %d chunks.\n", outcome.VideoTitle, outcome.TotalChunks)
	return nil
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum rows to show")
	fs.Parse(args)

	app, err := core.New(version)
	if err != nil {
		return err
	}
	defer app.Close()

	records, err := app.Store.ListSubmissions(*limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No submissions yet.")
		return nil
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s  %-11s  %-9s", rec.CreatedAt.Format("2006-01-02 15:04"), rec.VideoID, rec.Status)
		switch {
		case rec.Status == "completed":
			line += fmt.Sprintf("  %q (%d chunks)", rec.Title, rec.TotalChunks)
		case rec.Error != "":
			line += "  " + rec.Error
		}
		fmt.Println(line)
	}
	return nil
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "Google OAuth access token")
	expiresIn := fs.Duration("expires-in", time.Hour, "token lifetime")
	fs.Parse(args)

	if *token == "" {
		return fmt.Errorf("login requires -token")
	}

	app, err := core.New(version)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.RequestTimeout())
	defer cancel()

	if err := app.Auth.Login(ctx, *token, time.Now().Add(*expiresIn)); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return nil
}

func cmdLogout(args []string) error {
	app, err := core.New(version)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.RequestTimeout())
	defer cancel()

	if err := app.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func cmdServeSim(args []string) error {
	fs := flag.NewFlagSet("serve-sim", flag.ExitOnError)
	addr := fs.String("addr", ":8807", "listen address")
	stepDelay := fs.Duration("step-delay", 400*time.Millisecond, "delay between pipeline steps")
	fs.Parse(args)

	sim := simulator.New(*stepDelay)
	defer sim.Close()

	log.Printf("Simulator listening on %s", *addr)
	return http.ListenAndServe(*addr, sim.Router())
}
