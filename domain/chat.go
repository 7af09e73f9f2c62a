package domain

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

func (c ChatType) Private() bool {
	return c == ChatPrivate
}

// InboundMessage is a chat message as seen by the link listener,
// already reduced to the fields the relay cares about.
type InboundMessage struct {
	ChatID    int64
	ChatType  ChatType
	MessageID int
	UserID    int64
	Username  string
	FirstName string
	Text      string
	// Mentioned is set when the bot is @-mentioned in a non-private chat.
	Mentioned bool
	// Command carries a parsed bot command ("start", "help", "status"), empty otherwise.
	Command string
}

// MessageRef points at a message the bot previously sent, for edits and deletes.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// MemberInfo is the bot's own membership state in a chat, used to gate
// processing in groups and channels.
type MemberInfo struct {
	Status          string
	CanPostMessages bool
	CanSendMessages bool
}

// MayPost tells whether the bot is allowed to process links in a chat of the
// given type. Channels require admin with posting rights; groups accept
// member/administrator, or restricted with send permission.
func (m MemberInfo) MayPost(chatType ChatType) bool {
	switch chatType {
	case ChatPrivate:
		return true
	case ChatChannel:
		return m.Status == "administrator" && m.CanPostMessages
	case ChatGroup, ChatSupergroup:
		if m.Status == "restricted" {
			return m.CanSendMessages
		}
		return m.Status == "administrator" || m.Status == "member"
	default:
		return false
	}
}

// FileUpload is everything the chat client needs to deliver one local file.
// Progress receives fractions in [0,1] and may be nil.
type FileUpload struct {
	ChatID   int64
	Path     string
	Name     string
	Size     int64
	Class    MediaClass
	Caption  string
	Progress func(fraction float64)
}
