package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "mercado/internal/cli"
	"mercado/internal/config"
	"mercado/internal/game"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "mrc",
		Short:        "Mercado CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newRegisterCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(&apiBase),
		newResetCmd(&apiBase),
		newDashCmd(&apiBase),
		newClickCmd(&apiBase),
		newShopCmd(&apiBase),
		newBuyCmd(&apiBase),
		newUnlockCmd(&apiBase),
		newStaffCmd(&apiBase),
		newUpgradesCmd(&apiBase),
		newPrestigeCmd(&apiBase),
		newCreditsCmd(&apiBase),
		newRedeemCmd(&apiBase),
		newRankCmd(&apiBase),
		newAnnouncerCmd(&apiBase),
		newChatCmd(&apiBase),
		newColorCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func loadSessionOrFail() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func newRegisterCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create a Mercado account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := promptRequired("Username")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Register(ctx, username, password)
			if err != nil {
				return err
			}
			login, err := decodeInto[loginPayload](out)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{Token: login.Token, Username: login.Username}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Account created. Welcome to the market, %s.", login.Username))
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Mercado",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := promptRequired("Username")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Login(ctx, username, password)
			if err != nil {
				return err
			}
			login, err := decodeInto[loginPayload](out)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{Token: login.Token, Username: login.Username}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			if login.Tampered {
				printError("Save file integrity check failed. Session is frozen; run `mrc reset` to start over.")
				return nil
			}
			if login.OfflineEarningsPretty != "" {
				printInfo(fmt.Sprintf("Your store earned $%s while you were away.", login.OfflineEarningsPretty))
			}
			return nil
		},
	}
}

func newLogoutCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Save progress and clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				if err := newClient(apiBase).Logout(ctx, sess.Token); err != nil {
					printWarn(fmt.Sprintf("Server logout failed: %v", err))
				}
			}
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newResetCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe your save and start from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			confirm, err := promptChoice("This erases all progress. Continue", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if confirm != "yes" {
				printInfo("Reset cancelled.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).ResetSession(ctx, sess.Token); err != nil {
				return err
			}
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Save wiped. Log in again to start a fresh store.")
			return nil
		},
	}
}

func newDashCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Show your store dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).State(ctx, sess.Token)
			if err != nil {
				return err
			}
			return renderDashboard(out, sess.Username)
		},
	}
}

func newClickCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "click [times]",
		Short: "Work the register",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			times := int64(1)
			if len(args) > 0 {
				times, err = parsePositiveInt(args[0])
				if err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			client := newClient(apiBase)
			total := 0.0
			var lastPretty string
			for i := int64(0); i < times; i++ {
				out, err := client.Click(ctx, sess.Token)
				if err != nil {
					return err
				}
				res, err := decodeInto[clickPayload](out)
				if err != nil {
					return err
				}
				total += res.Amount
				lastPretty = res.AmountPretty
			}
			if times == 1 {
				printSuccess(fmt.Sprintf("Cha-ching! +$%s", lastPretty))
			} else {
				printSuccess(fmt.Sprintf("Cha-ching! %d sales for +$%s", times, game.FormatMoney(total)))
			}
			return nil
		},
	}
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shop",
		Short: "Browse the product sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Catalog(ctx)
			if err != nil {
				return err
			}
			return renderShop(out)
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy [product] [amount|max]",
		Short: "Level up a product section",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			id, err := stringFromArgsOrPrompt(args, 0, "Product id")
			if err != nil {
				return err
			}
			amount := "1"
			if len(args) >= 2 {
				amount = strings.ToLower(strings.TrimSpace(args[1]))
			} else {
				amount, err = promptOptional("Amount (number or max) [1]")
				if err != nil {
					return err
				}
				if amount == "" {
					amount = "1"
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).BuyProduct(ctx, sess.Token, id, amount)
			if err != nil {
				return err
			}
			q, err := decodeInto[purchasePayload](out)
			if err != nil {
				return err
			}
			if q.Count == 0 {
				printWarn("Could not afford a single level. Keep selling.")
				return nil
			}
			printSuccess(fmt.Sprintf("Bought %d level(s) of %s for $%s.", q.Count, id, q.CostPretty))
			return nil
		},
	}
}

func newUnlockCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock [product]",
		Short: "Unlock a new product section",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			id, err := stringFromArgsOrPrompt(args, 0, "Product id")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).UnlockProduct(ctx, sess.Token, id)
			if err != nil {
				return err
			}
			view, err := decodeInto[stateView](out)
			if err != nil {
				return err
			}
			if view.State.ProductLevels[id] > 0 {
				printSuccess(fmt.Sprintf("Section %s is open for business.", id))
			} else {
				printWarn("Unlock did not go through. Check the cost and your prestige level with `mrc shop`.")
			}
			return nil
		},
	}
}

func newStaffCmd(apiBase *string) *cobra.Command {
	staff := &cobra.Command{
		Use:   "staff",
		Short: "Staff commands",
	}
	staff.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List hireable staff",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Catalog(ctx)
			if err != nil {
				return err
			}
			return renderStaff(out)
		},
	})
	staff.AddCommand(&cobra.Command{
		Use:   "hire [id]",
		Short: "Hire a staff member",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			id, err := stringFromArgsOrPrompt(args, 0, "Staff id")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).HireStaff(ctx, sess.Token, id)
			if err != nil {
				return err
			}
			view, err := decodeInto[stateView](out)
			if err != nil {
				return err
			}
			if view.State.HiredStaff[id] {
				printSuccess(fmt.Sprintf("%s joined the team.", id))
			} else {
				printWarn("Hire did not go through. Check the cost with `mrc staff list`.")
			}
			return nil
		},
	})
	return staff
}

func newUpgradesCmd(apiBase *string) *cobra.Command {
	upgrades := &cobra.Command{
		Use:   "upgrades",
		Short: "Upgrade commands",
	}
	upgrades.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available upgrades",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Catalog(ctx)
			if err != nil {
				return err
			}
			return renderUpgrades(out)
		},
	})
	upgrades.AddCommand(&cobra.Command{
		Use:   "buy [id]",
		Short: "Buy an upgrade",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			id, err := stringFromArgsOrPrompt(args, 0, "Upgrade id")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).BuyUpgrade(ctx, sess.Token, id)
			if err != nil {
				return err
			}
			view, err := decodeInto[stateView](out)
			if err != nil {
				return err
			}
			if view.State.PurchasedUpgrades[id] {
				printSuccess(fmt.Sprintf("Upgrade %s installed.", id))
			} else {
				printWarn("Purchase did not go through. Check cost and prerequisites with `mrc upgrades list`.")
			}
			return nil
		},
	})
	return upgrades
}

func newPrestigeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prestige",
		Short: "Sell the store and restart with a permanent bonus",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			confirm, err := promptChoice("Prestige resets money, products, staff and upgrades. Continue", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if confirm != "yes" {
				printInfo("Prestige cancelled.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Prestige(ctx, sess.Token)
			if err != nil {
				return err
			}
			view, err := decodeInto[stateView](out)
			if err != nil {
				return err
			}
			if view.State.Money == 0 && view.State.PrestigeLevel > 0 {
				printSuccess(fmt.Sprintf("Prestige %d reached. You are now %s (income x%.2f).",
					view.State.PrestigeLevel, view.Title, view.State.PrestigeMultiplier))
			} else {
				printWarn("Not enough lifetime earnings for the next title yet. See `mrc dash`.")
			}
			return nil
		},
	}
}

func newCreditsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "credits",
		Short: "Spend credits on a permanent income boost",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).SpendCredits(ctx, sess.Token)
			if err != nil {
				return err
			}
			view, err := decodeInto[stateView](out)
			if err != nil {
				return err
			}
			if view.State.CreditMultiplier > 1 {
				printSuccess(fmt.Sprintf("Boost active: income x%.1f. Credits left: %d.",
					view.State.CreditMultiplier, view.State.Credits))
			} else {
				printWarn(fmt.Sprintf("Boost needs more credits. You have %d (earned by play time).", view.State.Credits))
			}
			return nil
		},
	}
}

func newRedeemCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem [code]",
		Short: "Redeem a promo code for credits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			code, err := stringFromArgsOrPrompt(args, 0, "Code")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).RedeemCode(ctx, sess.Token, strings.ToUpper(code))
			if err != nil {
				return err
			}
			res, err := decodeInto[redeemPayload](out)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Code accepted: +%d credits.", res.Credits))
			return nil
		},
	}
}

func newRankCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rank [money|time]",
		Short: "Show the leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := "money"
			if len(args) > 0 {
				mode = strings.ToLower(strings.TrimSpace(args[0]))
			}
			if mode != "money" && mode != "time" {
				return fmt.Errorf("unknown rank mode %q (want money or time)", mode)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, mode)
			if err != nil {
				return err
			}
			return renderLeaderboard(out, mode)
		},
	}
}

func newAnnouncerCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "announcer",
		Short: "Hear the store announcer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Announcer(ctx)
			if err != nil {
				return err
			}
			res, err := decodeInto[announcerPayload](out)
			if err != nil {
				return err
			}
			accent.Printf("\nANNOUNCER: %s\n\n", res.Quote)
			return nil
		},
	}
}

func newChatCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Show recent global chat messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ChatHistory(ctx)
			if err != nil {
				return err
			}
			return renderChatHistory(out)
		},
	}
}

func newColorCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "color [hex]",
		Short: "Set your chat name color",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSessionOrFail()
			if err != nil {
				return err
			}
			hex, err := stringFromArgsOrPrompt(args, 0, "Palette color (e.g. #1d4ed8)")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).SetChatColor(ctx, sess.Token, hex); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Chat color set to %s.", hex))
			return nil
		},
	}
}

func stringFromArgsOrPrompt(args []string, idx int, label string) (string, error) {
	if len(args) > idx {
		v := strings.TrimSpace(args[idx])
		if v == "" {
			return "", fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptRequired(label)
}
