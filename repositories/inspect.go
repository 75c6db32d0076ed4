package repositories

import (
	"fmt"
	"strings"
	"time"

	"duo-chat/domain"
	"duo-chat/internal"
)

const inspectTimeFormat = "2006-01-02 15:04:05"

// InspectRecord decodes any stored record for the inspector. Password hashes are never shown.
func InspectRecord(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, userIDPrefix):
		u, err := decodeUser(val)
		if err != nil {
			return undecodable(row, err)
		}
		row.Type = "USER"
		row.EntityID = internal.ShortID(u.ID)
		row.Timestamp = formatTime(u.CreatedAt)
		row.Detail = fmt.Sprintf("%s <%s>", u.Name, u.Email)

	case strings.HasPrefix(key, userEmailPrefix):
		row.Type = "EMAIL INDEX"
		row.EntityID = internal.ShortID(string(val))
		row.Detail = strings.TrimPrefix(key, userEmailPrefix)

	case strings.HasPrefix(key, convPairPrefix):
		pair := domain.PairKey(strings.TrimPrefix(key, convPairPrefix))
		c, err := decodeConversation(pair, val)
		if err != nil {
			return undecodable(row, err)
		}
		row.Type = "CONVERSATION"
		row.EntityID = internal.ShortID(c.ID.String())
		row.Timestamp = formatTime(c.UpdatedAt)
		row.Detail = fmt.Sprintf("%s, %d message(s)", pair, c.MessageCount)

	case strings.HasPrefix(key, convIDPrefix), strings.HasPrefix(key, convUserPrefix):
		row.Type = "CONVERSATION INDEX"
		row.Detail = string(val)

	case strings.HasPrefix(key, msgBodyPrefix):
		m, err := decodeMessage(val)
		if err != nil {
			return undecodable(row, err)
		}
		row.Type = "MESSAGE"
		row.EntityID = internal.ShortID(m.ID.String())
		row.Timestamp = formatTime(m.CreatedAt)
		row.Detail = fmt.Sprintf("#%d by %s: %s", m.Seq, internal.ShortID(m.MsgByUserID), describeContent(m))

	case strings.HasPrefix(key, msgLinkPrefix):
		row.Type = "MESSAGE LINK"
		row.Detail = string(val)
	}
	return row
}

func undecodable(row internal.InspectRow, err error) internal.InspectRow {
	row.Detail = "Error: " + err.Error()
	return row
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format(inspectTimeFormat)
}

func describeContent(m domain.Message) string {
	var parts []string
	if m.Text != "" {
		parts = append(parts, fmt.Sprintf("%q", m.Text))
	}
	if m.ImageURL != "" {
		parts = append(parts, "[image]")
	}
	if m.VideoURL != "" {
		parts = append(parts, "[video]")
	}
	return strings.Join(parts, " ")
}
