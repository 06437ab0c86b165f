package provider

import "strings"

// groupJIDSuffix is the reserved suffix WhatsApp uses for group JIDs;
// individual contacts end in "@s.whatsapp.net".
const groupJIDSuffix = "@g.us"

// IsGroupJID reports whether the remote identifier names a group.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, groupJIDSuffix)
}
