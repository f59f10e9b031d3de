package bot

import (
	"fmt"
	"strings"
)

const (
	timeLayout      = "2006-01-02 15:04:05"
	unknownUserName = "Unknown user"
	divider         = "-------------------"
)

const (
	msgPermissionDenied = "❌ Permission denied. This command is for admins only."
	msgGenericFailure   = "❌ Something went wrong. Please try again later."
	msgCannotKickAdmin  = "❌ Cannot kick an admin."
	msgKickFailed       = "❌ Failed to kick user."
	msgBlacklistEmpty   = "📋 The blacklist is empty."
	msgHistoryEmpty     = "📜 No blacklist history."
	msgNoAdmins         = "👥 This group has no admins."
)

// Usage strings, shown after the command prefix
const (
	usageWarn      = "warn <user> <reason>"
	usageUnwarn    = "unwarn <user>"
	usageKick      = "kick <user> <reason>"
	usageWarnings  = "warnings <user>"
	usageReport    = "report <user> <reason>"
	usageAdmin     = "admin list | admin add <user> | admin remove <user>"
	usageBlacklist = "blacklist | blacklist add <user> [reason] | blacklist remove <user> [reason] | blacklist history [n]"
)

func msgUnknownCommand(prefix string) string {
	return fmt.Sprintf("❌ Unknown command. Type %shelp to see available commands.", prefix)
}

func msgUsage(prefix, usage string) string {
	parts := strings.Split(usage, " | ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return "❌ Usage: " + strings.Join(parts, "\n")
}

// block renders a titled notification with one "key: value" line per field
func block(title string, fields ...[2]string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(divider)
	for _, f := range fields {
		b.WriteString("\n")
		b.WriteString(f[0])
		b.WriteString(": ")
		b.WriteString(f[1])
	}
	return b.String()
}

func field(key, value string) [2]string {
	return [2]string{key, value}
}

func helpText(prefix string, admin bool, threshold int) string {
	var b strings.Builder
	b.WriteString("📖 Commands\n\nGeneral:\n")
	fmt.Fprintf(&b, "%shelp - show this message\n", prefix)
	fmt.Fprintf(&b, "%sstatus - show bot status\n", prefix)
	fmt.Fprintf(&b, "%swarnings <user> - show a user's warnings\n", prefix)
	fmt.Fprintf(&b, "%sreport <user> <reason> - report a user to the admins", prefix)

	if admin {
		b.WriteString("\n\nAdmin:\n")
		fmt.Fprintf(&b, "%sadmin list - list admins\n", prefix)
		fmt.Fprintf(&b, "%sadmin add <user> - add an admin\n", prefix)
		fmt.Fprintf(&b, "%sadmin remove <user> - remove an admin\n", prefix)
		fmt.Fprintf(&b, "%sblacklist - show the blacklist\n", prefix)
		fmt.Fprintf(&b, "%sblacklist add <user> [reason] - blacklist and remove a user\n", prefix)
		fmt.Fprintf(&b, "%sblacklist remove <user> [reason] - lift a blacklist entry\n", prefix)
		fmt.Fprintf(&b, "%sblacklist history [n] - show recent blacklist changes\n", prefix)
		fmt.Fprintf(&b, "%swarn <user> <reason> - warn a user\n", prefix)
		fmt.Fprintf(&b, "%sunwarn <user> - remove a user's latest warning\n", prefix)
		fmt.Fprintf(&b, "%skick <user> <reason> - kick and blacklist a user\n", prefix)
		fmt.Fprintf(&b, "\nUsers reaching %d warnings are blacklisted and removed automatically.", threshold)
	}
	return b.String()
}
