package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"groupguard/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarn_AlreadyBlacklisted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	require.NoError(t, env.stores.Blacklist.Add(ctx, "U1", "spam", "A1"))

	reply := env.send(t, "A1", "!warn U1 more spam")

	assert.Equal(t, "❌ Unknown user (U1) is already blacklisted.", reply)
	assert.Empty(t, env.stores.Warnings.GetWarnings(ctx, "G1", "U1"))
	assert.Empty(t, env.platform.kickCalls())
}

func TestWarn_KickFailureStillReportsBlacklist(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.platform.kickErr = errors.New("bot is not a group member")

	env.send(t, "A1", "!warn U1 a")
	env.send(t, "A1", "!warn U1 b")
	reply := env.send(t, "A1", "!warn U1 c")

	assert.Contains(t, reply, "User blacklisted")
	assert.Contains(t, reply, "could not be removed")
	assert.True(t, env.stores.Blacklist.IsBlacklisted(ctx, "U1"))
}

func TestUnwarn(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	assert.Equal(t, "❌ Unknown user (U1) has no warnings.", env.send(t, "A1", "!unwarn U1"))

	env.send(t, "A1", "!warn U1 a")
	env.send(t, "A1", "!warn U1 b")

	reply := env.send(t, "A1", "!unwarn U1")
	assert.Contains(t, reply, "Warning removed")
	assert.Contains(t, reply, "Remaining: 1/3")

	warnings := env.stores.Warnings.GetWarnings(ctx, "G1", "U1")
	require.Len(t, warnings, 1)
	assert.Equal(t, "a", warnings[0].Reason)
}

func TestWarnings(t *testing.T) {
	env := newTestEnv(t, Config{})

	assert.Equal(t, "✅ Unknown user (U1) has no warnings.", env.send(t, "U2", "!warnings U1"))

	env.send(t, "A1", "!warn U1 first offence")
	env.send(t, "A1", "!warn U1 second offence")

	reply := env.send(t, "U2", "!warnings U1")
	assert.Contains(t, reply, "Count: 2/3")
	assert.Contains(t, reply, "#1\nReason: first offence\nWarned by: A1")
	assert.Contains(t, reply, "#2\nReason: second offence")
	assert.Less(t, strings.Index(reply, "first offence"), strings.Index(reply, "second offence"))
}

func TestAdminCommands(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.platform.names["A1"] = "Alice"

	assert.Equal(t, "👥 Admins:\n- Alice (A1)", env.send(t, "A1", "!admin list"))

	assert.Equal(t, "✅ Added admin: Unknown user (B2)", env.send(t, "A1", "!admin add B2"))
	assert.True(t, env.stores.Admins.IsAdmin(ctx, "G1", "B2"))
	assert.Equal(t, "❌ Unknown user (B2) is already an admin.", env.send(t, "A1", "!ADMIN ADD B2"))

	// The new admin can now run restricted commands
	assert.Contains(t, env.send(t, "B2", "!warn U1 spam"), "Warnings: 1/3")

	assert.Equal(t, "✅ Removed admin: Unknown user (B2)", env.send(t, "A1", "!admin remove B2"))
	assert.Equal(t, "❌ Unknown user (B2) is not an admin.", env.send(t, "A1", "!admin remove B2"))
	assert.Equal(t, msgPermissionDenied, env.send(t, "B2", "!warn U1 spam"))
}

func TestBlacklistCommands(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	assert.Equal(t, msgBlacklistEmpty, env.send(t, "A1", "!blacklist"))
	assert.Equal(t, msgHistoryEmpty, env.send(t, "A1", "!blacklist history"))

	t.Run("add kicks from the current group", func(t *testing.T) {
		reply := env.send(t, "A1", "!blacklist add U1 scam links")
		assert.Contains(t, reply, "Reason: scam links")
		assert.Contains(t, reply, "removed from the group")
		assert.Equal(t, []kickCall{{GroupID: "G1", UserID: "U1"}}, env.platform.kickCalls())

		entry, ok := env.stores.Blacklist.Get(ctx, "U1")
		require.True(t, ok)
		assert.Equal(t, "A1", entry.ReporterID)
	})

	t.Run("add defaults the reason", func(t *testing.T) {
		env.send(t, "A1", "!blacklist add U2")
		entry, _ := env.stores.Blacklist.Get(ctx, "U2")
		assert.Equal(t, "blacklisted by admin", entry.Reason)
	})

	t.Run("add conflict", func(t *testing.T) {
		assert.Equal(t, "❌ Unknown user (U1) is already blacklisted.", env.send(t, "A1", "!blacklist add U1 again"))
	})

	t.Run("admins are not kicked", func(t *testing.T) {
		kicks := len(env.platform.kickCalls())
		reply := env.send(t, "A1", "!blacklist add A1 testing")
		assert.Contains(t, reply, "Admins are not removed")
		assert.Len(t, env.platform.kickCalls(), kicks)
		require.NoError(t, env.stores.Blacklist.Remove(ctx, "A1", "cleanup", "A1"))
	})

	t.Run("listing is sorted", func(t *testing.T) {
		reply := env.send(t, "A1", "!blacklist")
		assert.Contains(t, reply, "Blacklist (2)")
		assert.Less(t, strings.Index(reply, "User: U1"), strings.Index(reply, "User: U2"))
	})

	t.Run("remove", func(t *testing.T) {
		reply := env.send(t, "A1", "!blacklist remove U1 appeal accepted")
		assert.Contains(t, reply, "Removed from blacklist")
		assert.False(t, env.stores.Blacklist.IsBlacklisted(ctx, "U1"))
		assert.Equal(t, "❌ Unknown user (U1) is not blacklisted.", env.send(t, "A1", "!blacklist remove U1"))
	})

	t.Run("history", func(t *testing.T) {
		reply := env.send(t, "A1", "!blacklist history 2")
		assert.Contains(t, reply, "last 2")
		assert.Contains(t, reply, "remove A1 (cleanup) by A1")
		assert.Contains(t, reply, "remove U1 (appeal accepted) by A1")
		assert.NotContains(t, reply, "scam links")

		all := env.send(t, "A1", "!blacklist history")
		assert.Contains(t, all, "last 5")
	})
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.platform.names["U2"] = "Bob"

	reply := env.send(t, "U2", "!report U1 posting scam links")

	assert.Contains(t, reply, "User report")
	assert.Contains(t, reply, "Reason: posting scam links")
	assert.Contains(t, reply, "Reporter: Bob (U2)")
	assert.Contains(t, reply, "Report ID: ")

	reports := env.stores.Reports.Recent(ctx, 0)
	require.Len(t, reports, 1)
	assert.Equal(t, "U1", reports[0].TargetID)
	assert.Equal(t, "U2", reports[0].ReporterID)

	assert.False(t, env.stores.Blacklist.IsBlacklisted(ctx, "U1"))
	assert.Empty(t, env.stores.Warnings.GetWarnings(ctx, "G1", "U1"))

	t.Run("without a report log", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.dispatcher.stores.Reports = nil

		reply := env.send(t, "U2", "!report U1 spam")
		assert.Contains(t, reply, "User report")
		assert.NotContains(t, reply, "Report ID")
	})

	t.Run("report log failure still broadcasts", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.docs.SaveFunc = func(ctx context.Context, name string, data []byte) error {
			if name == moderation.DocumentReports {
				return errors.New("disk full")
			}
			return nil
		}

		reply := env.send(t, "U2", "!report U1 spam")
		assert.Contains(t, reply, "User report")
		assert.NotContains(t, reply, "Report ID")
	})
}

func TestHelp(t *testing.T) {
	env := newTestEnv(t, Config{SuperAdmins: []string{"S1"}})

	member := env.send(t, "U2", "!help")
	assert.Contains(t, member, "!report <user> <reason>")
	assert.NotContains(t, member, "Admin:")
	assert.NotContains(t, member, "!kick")

	for _, sender := range []string{"A1", "S1"} {
		admin := env.send(t, sender, "!help")
		assert.Contains(t, admin, "Admin:")
		assert.Contains(t, admin, "!kick <user> <reason>")
		assert.Contains(t, admin, "reaching 3 warnings")
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	require.NoError(t, env.stores.Blacklist.Add(ctx, "U1", "spam", "A1"))
	saves := env.docs.Saves()

	reply := env.send(t, "U2", "!status")

	assert.Contains(t, reply, "Bot status")
	assert.Contains(t, reply, "Admins in this group: 1")
	assert.Contains(t, reply, "Blacklisted users: 1")
	assert.Contains(t, reply, "Warning threshold: 3")
	assert.Contains(t, reply, "Time: 2026-03-01 12:00:00")
	assert.Equal(t, saves, env.docs.Saves())
}
