// Package client is the user-facing entry point: it resolves the session,
// then runs one action against a store node through the gateway. The tip
// action additionally drives the on-chain transfer before the record is
// written.
package client

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/chain"
	"example.com/contextfeed/internal/coordinator"
	"example.com/contextfeed/internal/feed"
	"example.com/contextfeed/internal/gateway"
	"example.com/contextfeed/internal/identity"
	"example.com/contextfeed/internal/images"
	config "example.com/contextfeed/internal/init"
	"example.com/contextfeed/internal/logger"
	"example.com/contextfeed/internal/models"
	"example.com/contextfeed/internal/tips"
)

var logg = logger.New()

// Run parses the client flags and executes one action. The session token
// and store endpoint come from config; per-invocation parameters from args.
func Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	action := fs.String("action", "feed", "action to run: feed | post | tip")
	postID := fs.String("post", "", "target post ID (tip)")
	recipient := fs.String("recipient", "", "recipient wallet address (tip)")
	amount := fs.String("amount", "", "tip amount in tokens (tip)")
	content := fs.String("content", "", "post content (post)")
	imagePath := fs.String("image", "", "path of an image to attach (post)")
	limit := fs.Int("limit", 50, "number of feed entries (feed)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gw := gateway.NewClient(cfg.StoreURL, cfg.ContextID, cfg.SessionToken)

	res, err := identity.ResolveSession(cfg.SessionToken, gw)
	if err != nil {
		return err
	}
	if !res.Registered {
		return apperr.New(apperr.Unregistered, "client",
			"session public key has no user record, register first")
	}
	logg.Info("client", "Session resolved for user_id="+res.User.ID)

	switch *action {
	case "feed":
		posts, err := followingFeed(gw, res.User.ID, *limit)
		if err != nil {
			return err
		}
		return printJSON(posts)

	case "post":
		uploader := images.NewUploader(cfg.ImageHostURL, cfg.ImageHostKey)
		post, err := publishPost(gw, uploader, res.User.ID, *content, *imagePath)
		if err != nil {
			return err
		}
		return printJSON(post)

	case "tip":
		transfer, err := chain.NewERC20Service(cfg)
		if err != nil {
			return err
		}
		defer transfer.Close()

		attempt, err := sendTip(ctx, gw, transfer, cfg.TokenDecimals, cfg.ChainConfirmTO,
			res.User.ID, *postID, *recipient, *amount)
		if err != nil {
			if attempt != nil && attempt.State == tips.StateRecordFailed {
				logg.Error("client", "Tip paid but not recorded, re-run the tip with the same tx="+attempt.TxHash, err)
			}
			return err
		}
		logg.Info("client", "Tip reconciled tx="+attempt.TxHash)
		return nil

	default:
		return fmt.Errorf("unknown action %q", *action)
	}
}

// followingFeed projects the posts of the users the caller follows out of
// the global post set.
func followingFeed(gw *gateway.Client, userID string, limit int) ([]models.Post, error) {
	posts, err := gw.GetAllPosts()
	if err != nil {
		return nil, err
	}
	following, err := gw.GetFollowing(userID)
	if err != nil {
		return nil, err
	}

	out := feed.Following(posts, feed.FollowingSet(following))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// publishPost uploads the optional image, then creates the post through the
// mutation coordinator. A failed upload degrades to a text-only post.
func publishPost(gw coordinator.Store, uploader *images.Uploader, userID, content, imagePath string) (models.Post, error) {
	imageURL := ""
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return models.Post{}, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()

		imageURL, err = uploader.Upload(filepath.Base(imagePath), f)
		if err != nil {
			logg.Error("client", "Image upload failed, posting without image", err)
			imageURL = ""
		}
	}

	return coordinator.New(gw).CreatePost(userID, content, imageURL)
}

// sendTip drives the tip engine end to end with the confirmation timeout as
// the context deadline: a transfer that does not confirm in time surfaces as
// a chain failure, never as a hung client.
func sendTip(ctx context.Context, store tips.RecordStore, transfer chain.TransferService,
	decimals int, confirmTO time.Duration, userID, postID, recipient, amount string) (*tips.Attempt, error) {

	ctx, cancel := context.WithTimeout(ctx, confirmTO)
	defer cancel()

	eng := tips.New(store, transfer, decimals)
	return eng.SendTip(ctx, userID, postID, recipient, amount)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
