package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/app"
	"github.com/orgball2608/story-engine/internal/playback"
	"github.com/orgball2608/story-engine/internal/repositories/story"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/formatter"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var playCreator string

const playHelp = "keys: l/r tap left/right, c tap centre, h hold, u release, < > swipe stories, d swipe down, p profile, q quit"

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a creator's active stories in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			repo    story.Repository
			factory *playback.Factory
			clock   clockwork.Clock
			cfg     *config.Config
		)
		return runWith(cmd.Context(), func(ctx context.Context) error {
			creator := playCreator
			if creator == "" {
				creator = cfg.Profile.CreatorID
			}
			stories, err := repo.ListActiveByCreator(ctx, creator, clock.Now())
			if err != nil {
				return err
			}
			fmt.Printf("%d active stories from %s\n%s\n", len(stories), creator, playHelp)

			c := factory.New(stories, printEvent)
			c.Start(ctx)
			go readKeys(c)

			select {
			case <-c.Done():
			case <-ctx.Done():
				c.Dismiss()
			}
			return nil
		}, app.Base, app.Storage, app.Engine, fx.Populate(&repo, &factory, &clock, &cfg))
	},
}

func init() {
	playCmd.Flags().StringVar(&playCreator, "creator", "", "creator whose stories to play (default: the configured creator)")
}

func printEvent(ev playback.Event) {
	cur := ev.Cursor
	switch ev.Kind {
	case playback.EventSegment:
		seg := ev.Segment
		fmt.Printf("story %d segment %d: %s %s (%s)\n",
			cur.StoryIndex+1, cur.SegmentIndex+1, seg.Kind, seg.URL, formatter.FormatClock(seg.Duration))
	case playback.EventPaused:
		fmt.Printf("paused at %.0f%%\n", cur.Progress*100)
	case playback.EventResumed:
		fmt.Println("resumed")
	case playback.EventProfilePeek:
		fmt.Printf("profile of %s\n", ev.CreatorID)
	case playback.EventDismissed:
		fmt.Printf("closed (%s)\n", ev.Reason)
	}
}

func readKeys(c *playback.Controller) {
	const width = 300.0
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "l":
			c.Tap(0, width)
		case "r":
			c.Tap(width, width)
		case "c":
			c.Tap(width/2, width)
		case "h":
			c.LongPress(true)
		case "u":
			c.LongPress(false)
		case "<":
			c.Swipe(200, 0)
		case ">":
			c.Swipe(-200, 0)
		case "d":
			c.Swipe(0, 200)
		case "p":
			c.Swipe(0, -100)
		case "q":
			c.Dismiss()
			return
		}
	}
}
