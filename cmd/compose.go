package main

import (
	"context"
	"fmt"

	"github.com/orgball2608/story-engine/internal/app"
	"github.com/orgball2608/story-engine/internal/capture"
	"github.com/orgball2608/story-engine/internal/capture/captureimpl"
	"github.com/orgball2608/story-engine/internal/composition"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/picker/pickerimpl"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var composeFlags struct {
	caption    string
	text       string
	background string
	audience   string
	sticker    string
	mention    string
	camera     bool
}

var composeCmd = &cobra.Command{
	Use:   "compose [media...]",
	Short: "Build a story from local media or text and publish it",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			factory     *composition.Factory
			coordinator *captureimpl.Coordinator
			prober      transcode.Prober
			log         logger.Logger
		)
		return runWith(cmd.Context(), func(ctx context.Context) error {
			if composeFlags.camera {
				if err := checkCamera(ctx, coordinator); err != nil {
					return err
				}
			}

			s := factory.NewSession()
			defer s.Discard()

			if len(args) > 0 {
				ok, err := s.Pick(ctx, pickerimpl.NewFilePicker(log, prober, args...))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("none of %v is an image or a video", args)
				}
			}
			if err := applyComposeFlags(s); err != nil {
				return err
			}

			if s.Processing() {
				fmt.Println("Preparing video...")
			}
			if err := s.WaitIdle(ctx); err != nil {
				return err
			}
			if err := s.Err(); err != nil {
				return fmt.Errorf("%s", errors.GetMessage(err))
			}

			storyType := s.StoryType()
			story, err := s.Publish(ctx, func(p float64) {
				fmt.Printf("\rPosting %3.0f%%", p*100)
			})
			fmt.Println()
			if errors.IsRetryable(err) {
				fmt.Println("Retrying once...")
				story, err = s.RetryPublish(ctx, nil)
			}
			if err != nil {
				return fmt.Errorf("%s", errors.GetMessage(err))
			}

			fmt.Printf("Published %s (%s, %d segment(s), expires %s)\n",
				story.ID, storyType, len(story.Segments), story.ExpiresAt.Format("Jan 2 15:04"))
			for _, seg := range story.Segments {
				fmt.Printf("  %-5s %s\n", seg.Kind, seg.URL)
			}
			return nil
		}, app.Base, app.Storage, app.Engine, fx.Populate(&factory, &coordinator, &prober, &log))
	},
}

func init() {
	f := composeCmd.Flags()
	f.StringVar(&composeFlags.caption, "caption", "", "story caption")
	f.StringVar(&composeFlags.text, "text", "", "text for a text-only story")
	f.StringVar(&composeFlags.background, "background", "", "background colour of a text story")
	f.StringVar(&composeFlags.audience, "audience", string(domain.AudiencePublic), "public or friends")
	f.StringVar(&composeFlags.sticker, "sticker", "", "emoji sticker placed in the centre")
	f.StringVar(&composeFlags.mention, "mention", "", "handle to mention")
	f.BoolVar(&composeFlags.camera, "camera", false, "open and close the capture session first")
}

func applyComposeFlags(s *composition.Session) error {
	if err := s.SetAudience(domain.Audience(composeFlags.audience)); err != nil {
		return err
	}
	s.SetCaption(composeFlags.caption)
	s.SetBackground(composeFlags.background)

	if composeFlags.text != "" {
		s.SetTextOverlay(domain.OverlayItem{
			Payload:   domain.Payload{Value: composeFlags.text, Style: domain.TextStyle{Font: domain.FontBold, Color: "#FFFFFF"}},
			Transform: domain.IdentityTransform(),
		})
	}
	if composeFlags.sticker != "" {
		s.AddOverlay(domain.OverlayItem{
			Kind:      domain.OverlaySticker,
			Payload:   domain.Payload{Type: domain.PayloadEmoji, Value: composeFlags.sticker},
			Transform: domain.IdentityTransform(),
		})
	}
	if composeFlags.mention != "" {
		s.AddOverlay(domain.OverlayItem{
			Kind:      domain.OverlaySticker,
			Payload:   domain.Payload{Type: domain.PayloadMention, Value: composeFlags.mention},
			Transform: domain.Transform{Position: domain.Point{X: 0.5, Y: 0.8}, Scale: 1},
		})
	}
	return nil
}

// checkCamera runs the capture session through start, switch and focus and
// prints what it ended up with.
func checkCamera(ctx context.Context, coordinator *captureimpl.Coordinator) error {
	session, err := coordinator.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = coordinator.Release(ctx, session) }()

	session.Start()
	session.SetFlash(capture.FlashAuto)
	session.Focus(domain.Point{X: 0.5, Y: 0.5})
	session.SwitchDevice(capture.Front)
	if err := session.Sync(ctx); err != nil {
		return err
	}

	st := session.State()
	fmt.Printf("Camera running=%v position=%s flash=%s\n", st.Running, st.Position, st.Flash)
	return nil
}
