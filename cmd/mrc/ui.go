package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"mercado/internal/catalog"
	"mercado/internal/game"
	"mercado/internal/store"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type stateView struct {
	State       game.State     `json:"state"`
	Tampered    bool           `json:"tampered"`
	IncomeRate  float64        `json:"income_rate"`
	ClickPower  float64        `json:"click_power"`
	MoneyPretty string         `json:"money_pretty"`
	Title       string         `json:"title"`
	NextTitle   *catalog.Title `json:"next_title"`
}

type loginPayload struct {
	Token                 string    `json:"token"`
	Username              string    `json:"username"`
	Tampered              bool      `json:"tampered"`
	State                 stateView `json:"state"`
	OfflineEarnings       float64   `json:"offline_earnings"`
	OfflineEarningsPretty string    `json:"offline_earnings_pretty"`
}

type clickPayload struct {
	Amount       float64 `json:"amount"`
	AmountPretty string  `json:"amount_pretty"`
}

type purchasePayload struct {
	Count      int     `json:"count"`
	Cost       float64 `json:"cost"`
	CostPretty string  `json:"cost_pretty"`
}

type redeemPayload struct {
	Credits int `json:"credits"`
}

type announcerPayload struct {
	Quote string `json:"quote"`
}

type leaderboardPayload struct {
	Mode string        `json:"mode"`
	Rows []store.Entry `json:"rows"`
}

type chatHistoryPayload struct {
	Messages []store.Message `json:"messages"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func parsePositiveInt(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return v, nil
}

func renderDashboard(raw map[string]any, username string) error {
	v, err := decodeInto[stateView](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== %s'S SUPERMARKET ==\n", strings.ToUpper(username))
	if v.Tampered {
		printError("Save integrity check failed. Session frozen; run `mrc reset` to start over.")
	}
	fmt.Printf("Title:        %s\n", v.Title)
	fmt.Printf("Money:        $%s\n", v.MoneyPretty)
	fmt.Printf("Lifetime:     $%s\n", game.FormatMoney(v.State.LifetimeEarnings))
	fmt.Printf("Income:       $%s/s\n", game.FormatMoney(v.IncomeRate))
	fmt.Printf("Click power:  $%s\n", game.FormatMoney(v.ClickPower))
	fmt.Printf("Play time:    %s\n", game.FormatDuration(time.Duration(v.State.PlayTime)*time.Second))
	fmt.Printf("Credits:      %d (boost x%.1f)\n", v.State.Credits, v.State.CreditMultiplier)
	fmt.Printf("Prestige:     %d (income x%.2f)\n", v.State.PrestigeLevel, v.State.PrestigeMultiplier)
	if v.NextTitle != nil {
		fmt.Printf("Next title:   %s at $%s lifetime\n", v.NextTitle.Name, game.FormatMoney(v.NextTitle.Cost))
	}

	fmt.Println()
	accent.Println("Sections")
	if len(v.State.ProductLevels) == 0 {
		printInfo("No sections open yet.")
	} else {
		fmt.Printf("%-14s %8s\n", "PRODUCT", "LEVEL")
		for _, id := range sortedKeys(v.State.ProductLevels) {
			fmt.Printf("%-14s %8d\n", id, v.State.ProductLevels[id])
		}
	}

	if len(v.State.HiredStaff) > 0 {
		fmt.Println()
		accent.Println("Staff")
		fmt.Println(strings.Join(sortedSetKeys(v.State.HiredStaff), ", "))
	}
	if len(v.State.PurchasedUpgrades) > 0 {
		fmt.Println()
		accent.Println("Upgrades")
		fmt.Println(strings.Join(sortedSetKeys(v.State.PurchasedUpgrades), ", "))
	}
	fmt.Println()
	return nil
}

func renderShop(raw map[string]any) error {
	cat, err := decodeInto[catalog.Catalog](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== PRODUCT SECTIONS ==")
	fmt.Printf("%-14s %-4s %12s %12s %12s %9s\n", "ID", "ICON", "BASE COST", "REVENUE", "UNLOCK", "PRESTIGE")
	for _, p := range cat.Products {
		prestige := "-"
		if p.ReqPrestige > 0 {
			prestige = strconv.Itoa(p.ReqPrestige)
		}
		unlock := "-"
		if p.UnlockCost > 0 {
			unlock = "$" + game.FormatMoney(p.UnlockCost)
		}
		fmt.Printf("%-14s %-4s %12s %12s %12s %9s\n",
			p.ID,
			p.Icon,
			"$"+game.FormatMoney(p.BaseCost),
			"$"+game.FormatMoney(p.BaseRevenue)+"/s",
			unlock,
			prestige,
		)
	}
	fmt.Println()
	return nil
}

func renderStaff(raw map[string]any) error {
	cat, err := decodeInto[catalog.Catalog](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== STAFF FOR HIRE ==")
	fmt.Printf("%-10s %-14s %12s %8s %-12s\n", "ID", "ROLE", "COST", "BONUS", "TARGET")
	for _, st := range cat.Staff {
		target := st.Target
		if target == catalog.TargetGlobal {
			target = "all sections"
		}
		fmt.Printf("%-10s %-14s %12s %7.1fx %-12s\n",
			st.ID,
			truncate(st.Role, 14),
			"$"+game.FormatMoney(st.Cost),
			st.Multiplier,
			target,
		)
	}
	fmt.Println()
	return nil
}

func renderUpgrades(raw map[string]any) error {
	cat, err := decodeInto[catalog.Catalog](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== UPGRADES ==")
	fmt.Printf("%-12s %12s %-10s %-30s\n", "ID", "COST", "REQUIRES", "EFFECTS")
	for _, u := range cat.Upgrades {
		requires := "-"
		if u.Requires != "" {
			requires = u.Requires
		}
		effects := make([]string, 0, len(u.Effects))
		for _, e := range u.Effects {
			effects = append(effects, fmt.Sprintf("%s x%.1f", e.Target, e.Value))
		}
		fmt.Printf("%-12s %12s %-10s %-30s\n",
			u.ID,
			"$"+game.FormatMoney(u.Cost),
			requires,
			truncate(strings.Join(effects, ", "), 30),
		)
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any, mode string) error {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	switch mode {
	case "time":
		accent.Println("\n== RANKING: PLAY TIME ==")
	default:
		accent.Println("\n== RANKING: LIFETIME EARNINGS ==")
	}
	if len(out.Rows) == 0 {
		printInfo("No players ranked yet.")
		return nil
	}
	fmt.Printf("%-6s %-18s %-16s %14s %12s\n", "RANK", "PLAYER", "TITLE", "LIFETIME", "PLAY TIME")
	for i, row := range out.Rows {
		fmt.Printf("%-6d %-18s %-16s %14s %12s\n",
			i+1,
			truncate(row.Username, 18),
			truncate(row.Title, 16),
			"$"+game.FormatMoney(row.LifetimeEarnings),
			game.FormatDuration(time.Duration(row.PlayTime)*time.Second),
		)
	}
	fmt.Println()
	return nil
}

func renderChatHistory(raw map[string]any) error {
	out, err := decodeInto[chatHistoryPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== GLOBAL CHAT ==")
	if len(out.Messages) == 0 {
		printInfo("Chat is quiet. Say hello from the web client.")
		return nil
	}
	for _, m := range out.Messages {
		fmt.Printf("%-16s %s: %s\n", m.SentAt.Local().Format("2006-01-02 15:04"), m.Username, m.Body)
	}
	fmt.Println()
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSetKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
