package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"viral-music-bot/internal/config"
	"viral-music-bot/internal/ledger"
	"viral-music-bot/internal/models"
)

const (
	referralPrefix = "ref_"
	linkPreviewLen = 50
	apology        = "⚠️ Something went wrong. Please try again later."
)

// Ledger is the part of the ledger store the dispatcher needs.
type Ledger interface {
	GetOrCreateUser(ctx context.Context, id int64) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	TouchUserProfile(ctx context.Context, id int64, p ledger.Profile) error
	CreditShares(ctx context.Context, id int64, amount int64) error
	ClaimDailyBonus(ctx context.Context, id int64, bonus int64, cooldownHours int) (ledger.BonusResult, error)
	RecordReferral(ctx context.Context, referrerID, referredID int64, bonus int64) error
	Promote(ctx context.Context, userID int64, content string) (ledger.PromotionReceipt, bool, error)
	ListPackages(ctx context.Context) ([]models.Package, error)
	ListActiveGroups(ctx context.Context) ([]models.Group, error)
}

// Sender is the Telegram user behind an update.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

type Settings struct {
	BotUsername        string
	SupportContact     string
	StartingShares     int64
	DailyBonus         int64
	BonusCooldownHours int
	ReferralBonus      int64
	AdminIDs           []int64
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		BotUsername:        cfg.BotUsername,
		SupportContact:     cfg.SupportContact,
		StartingShares:     cfg.StartingShares,
		DailyBonus:         cfg.DailyBonus,
		BonusCooldownHours: cfg.BonusCooldownHours,
		ReferralBonus:      cfg.ReferralBonus,
		AdminIDs:           cfg.AdminIDs,
	}
}

func (s Settings) isAdmin(id int64) bool {
	return slices.Contains(s.AdminIDs, id)
}

// Commands turns chat commands into ledger calls and renders Markdown
// replies. It knows nothing about the Telegram transport.
type Commands struct {
	ledger   Ledger
	settings Settings
	log      *logrus.Logger
}

func NewCommands(l Ledger, settings Settings, log *logrus.Logger) *Commands {
	return &Commands{ledger: l, settings: settings, log: log}
}

// Start registers the sender and, for first-time users, applies a
// "ref_<id>" deep-link payload.
func (c *Commands) Start(ctx context.Context, s Sender, payload string) string {
	_, err := c.ledger.GetUser(ctx, s.ID)
	isNew := errors.Is(err, ledger.ErrUserNotFound)
	if err != nil && !isNew {
		return c.fail(err, s, "start")
	}

	user, err := c.register(ctx, s)
	if err != nil {
		return c.fail(err, s, "start")
	}

	var referralNote string
	if isNew {
		if referrerID, ok := parseReferral(payload); ok {
			referralNote, user = c.applyReferral(ctx, s, referrerID, user)
		}
	}

	packages, err := c.ledger.ListPackages(ctx)
	if err != nil {
		return c.fail(err, s, "start")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎶 *Welcome to Viral Music Bot, %s!*\n\n", escapeMarkdown(s.FirstName))
	fmt.Fprintf(&b, "*🎁 New users start with %d FREE shares!*\n", c.settings.StartingShares)
	fmt.Fprintf(&b, "*💰 Daily Bonus: %d FREE shares every day!*\n\n", c.settings.DailyBonus)
	if referralNote != "" {
		b.WriteString(referralNote + "\n\n")
	}
	b.WriteString("*Your Stats:*\n")
	fmt.Fprintf(&b, "• Available Shares: *%d*\n", user.Shares)
	b.WriteString("• Each share promotes to all music groups\n\n")
	b.WriteString("*🔥 PACKAGES:*\n")
	b.WriteString(formatPackages(packages))
	b.WriteString("\n\n")
	b.WriteString(commandList(c.settings.DailyBonus))
	b.WriteString("\n\nStart with your FREE shares! 🚀")
	return b.String()
}

func (c *Commands) applyReferral(ctx context.Context, s Sender, referrerID int64, user *models.User) (string, *models.User) {
	err := c.ledger.RecordReferral(ctx, referrerID, s.ID, c.settings.ReferralBonus)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrSelfReferral),
		errors.Is(err, ledger.ErrAlreadyReferred),
		errors.Is(err, ledger.ErrUserNotFound):
		c.log.WithFields(logrus.Fields{
			"user_id":     s.ID,
			"referrer_id": referrerID,
		}).WithError(err).Debug("referral ignored")
		return "", user
	default:
		c.log.WithFields(logrus.Fields{
			"user_id":     s.ID,
			"referrer_id": referrerID,
		}).WithError(err).Error("failed to record referral")
		return "", user
	}

	if reloaded, err := c.ledger.GetUser(ctx, s.ID); err == nil {
		user = reloaded
	}
	return fmt.Sprintf("🤝 You joined with a friend's link: *+%d bonus shares!*", c.settings.ReferralBonus), user
}

// Promote asks for a link, or explains how to get shares.
func (c *Commands) Promote(ctx context.Context, s Sender) string {
	user, err := c.register(ctx, s)
	if err != nil {
		return c.fail(err, s, "promote")
	}
	if user.Shares <= 0 {
		return "❌ No shares! Get shares with /bonus or /buy"
	}
	return "🔗 *Send Music Link*\n\nSend your YouTube/Spotify/SoundCloud link:"
}

// Link spends one share to promote text, which must be an http(s) URL.
func (c *Commands) Link(ctx context.Context, s Sender, text string) string {
	if _, err := c.register(ctx, s); err != nil {
		return c.fail(err, s, "link")
	}

	link := strings.TrimSpace(text)
	if !validLink(link) {
		return "❌ Invalid URL. Send a link starting with http:// or https://"
	}

	receipt, ok, err := c.ledger.Promote(ctx, s.ID, link)
	if err != nil {
		return c.fail(err, s, "link")
	}
	if !ok {
		return "❌ No shares! Use /bonus or /buy"
	}

	return fmt.Sprintf("✅ *Promotion Sent!*\n\n"+
		"Link: `%s`\n"+
		"Cost: 1 share\n"+
		"Remaining: %d shares\n"+
		"Groups: %d\n"+
		"Estimated reach: %d members\n\n"+
		"Your music is being promoted! 🎵",
		previewLink(link), receipt.SharesLeft, receipt.SentTo, receipt.Reach)
}

func (c *Commands) Buy(ctx context.Context, s Sender) string {
	if _, err := c.register(ctx, s); err != nil {
		return c.fail(err, s, "buy")
	}
	packages, err := c.ledger.ListPackages(ctx)
	if err != nil {
		return c.fail(err, s, "buy")
	}
	return fmt.Sprintf("💳 *Available Packages*\n\n%s\n\nContact %s to purchase",
		formatPackages(packages), escapeMarkdown(c.settings.SupportContact))
}

func (c *Commands) Stats(ctx context.Context, s Sender) string {
	user, err := c.register(ctx, s)
	if err != nil {
		return c.fail(err, s, "stats")
	}
	return fmt.Sprintf("📊 *Your Statistics*\n\n"+
		"*Shares:* %d\n"+
		"*Referrals:* %d\n"+
		"*Member since:* %s\n\n"+
		"*Earn more:*\n"+
		"• /bonus - %d free shares daily\n"+
		"• /referral - Invite friends\n"+
		"• /buy - Purchase packages",
		user.Shares, user.Referrals, user.CreatedAt.UTC().Format("2006-01-02"), c.settings.DailyBonus)
}

func (c *Commands) Bonus(ctx context.Context, s Sender) string {
	if _, err := c.register(ctx, s); err != nil {
		return c.fail(err, s, "bonus")
	}

	res, err := c.ledger.ClaimDailyBonus(ctx, s.ID, c.settings.DailyBonus, c.settings.BonusCooldownHours)
	if err != nil {
		return c.fail(err, s, "bonus")
	}
	if !res.Granted {
		return fmt.Sprintf("⏳ *Bonus already claimed*\n\n"+
			"Come back in %d %s.\n"+
			"Current balance: %d shares",
			res.HoursRemaining, plural(res.HoursRemaining, "hour", "hours"), res.Shares)
	}
	return fmt.Sprintf("🎁 *%d FREE Shares Claimed!*\n\n"+
		"New total: %d shares\n"+
		"Come back in %d hours for more!",
		c.settings.DailyBonus, res.Shares, c.settings.BonusCooldownHours)
}

func (c *Commands) Referral(ctx context.Context, s Sender) string {
	user, err := c.register(ctx, s)
	if err != nil {
		return c.fail(err, s, "referral")
	}
	return fmt.Sprintf("🤝 *Referral Program*\n\n"+
		"Earn %d FREE shares per friend, and your friend gets %d too!\n\n"+
		"👥 Invited: %d\n\n"+
		"Your link:\n`%s`",
		c.settings.ReferralBonus, c.settings.ReferralBonus, user.Referrals, c.ReferralLink(s.ID))
}

// ReferralLink is the deep link that credits id when a new user opens it.
func (c *Commands) ReferralLink(id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%d", c.settings.BotUsername, referralPrefix, id)
}

func (c *Commands) Groups(ctx context.Context, s Sender) string {
	if _, err := c.register(ctx, s); err != nil {
		return c.fail(err, s, "groups")
	}
	groups, err := c.ledger.ListActiveGroups(ctx)
	if err != nil {
		return c.fail(err, s, "groups")
	}
	if len(groups) == 0 {
		return "📢 No active groups right now."
	}

	var b strings.Builder
	b.WriteString("📢 *Target Groups*\n\n")
	var reach int64
	for _, g := range groups {
		fmt.Fprintf(&b, "• %s (%d members)\n", escapeMarkdown(g.Title), g.MemberCount)
		reach += g.MemberCount
	}
	fmt.Fprintf(&b, "\nEvery promotion reaches %d groups, about %d members.", len(groups), reach)
	return b.String()
}

func (c *Commands) Help() string {
	return "🎶 *Viral Music Bot Help*\n\n" +
		"/start - Start bot\n" +
		commandList(c.settings.DailyBonus) + "\n\n" +
		"*Support:* " + escapeMarkdown(c.settings.SupportContact)
}

// Grant credits shares to a user after a manual purchase. Admins only.
// args are "<user_id> <shares>".
func (c *Commands) Grant(ctx context.Context, s Sender, args []string) string {
	if !c.settings.isAdmin(s.ID) {
		return "⛔ This command is for admins only."
	}
	if _, err := c.register(ctx, s); err != nil {
		return c.fail(err, s, "grant")
	}

	const usage = "Usage: /grant <user\\_id> <shares>"
	if len(args) != 2 {
		return usage
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usage
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return "❌ Shares must be a positive number."
	}

	err = c.ledger.CreditShares(ctx, target, amount)
	if errors.Is(err, ledger.ErrUserNotFound) {
		return fmt.Sprintf("❌ User %d has not started the bot yet.", target)
	}
	if err != nil {
		return c.fail(err, s, "grant")
	}

	user, err := c.ledger.GetUser(ctx, target)
	if err != nil {
		return c.fail(err, s, "grant")
	}

	c.log.WithFields(logrus.Fields{
		"admin_id": s.ID,
		"user_id":  target,
		"shares":   amount,
	}).Info("shares granted")
	return fmt.Sprintf("✅ Credited %d shares to %d. New balance: %d", amount, target, user.Shares)
}

// register makes sure the sender exists and refreshes their display names.
func (c *Commands) register(ctx context.Context, s Sender) (*models.User, error) {
	user, err := c.ledger.GetOrCreateUser(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	p := profileOf(s)
	if err := c.ledger.TouchUserProfile(ctx, s.ID, p); err != nil {
		return nil, err
	}
	user.Username, user.FirstName, user.LastName = p.Username, p.FirstName, p.LastName
	return user, nil
}

func (c *Commands) fail(err error, s Sender, op string) string {
	c.log.WithFields(logrus.Fields{
		"user_id": s.ID,
		"command": op,
	}).WithError(err).Error("command failed")
	return apology
}

func profileOf(s Sender) ledger.Profile {
	return ledger.Profile{
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
}

func parseReferral(payload string) (int64, bool) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(payload), referralPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func validLink(link string) bool {
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return false
	}
	if strings.ContainsAny(link, " \t\n") {
		return false
	}
	u, err := url.Parse(link)
	return err == nil && u.Host != ""
}

// previewLink shortens link to linkPreviewLen runes for display.
func previewLink(link string) string {
	link = strings.ReplaceAll(link, "`", "")
	if utf8.RuneCountInString(link) <= linkPreviewLen {
		return link
	}
	return string([]rune(link)[:linkPreviewLen]) + "..."
}

func formatPackages(packages []models.Package) string {
	lines := make([]string, 0, len(packages))
	for _, p := range packages {
		lines = append(lines, fmt.Sprintf("• *%s*: %d KES → %d shares", escapeMarkdown(p.Name), p.Price, p.Shares))
	}
	return strings.Join(lines, "\n")
}

func commandList(dailyBonus int64) string {
	return "*Commands:*\n" +
		"/promote - Share music link\n" +
		"/buy - View packages\n" +
		"/stats - Your statistics\n" +
		fmt.Sprintf("/bonus - Claim %d free shares daily\n", dailyBonus) +
		"/referral - Invite friends & earn\n" +
		"/groups - Where your music goes\n" +
		"/help - Show all commands"
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes user-supplied text for Telegram's legacy Markdown.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
