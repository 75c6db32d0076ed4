package event

import (
	"duo-chat/domain"

	"github.com/samber/lo"
)

func ToUserSummary(user domain.User, online bool) UserSummary {
	return UserSummary{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Online:     online,
		ProfilePic: user.ProfilePic,
	}
}

func ToMessageView(m domain.Message) MessageView {
	return MessageView{
		ID:          m.ID.String(),
		Text:        m.Text,
		ImageURL:    m.ImageURL,
		VideoURL:    m.VideoURL,
		MsgByUserID: m.MsgByUserID,
		Seen:        m.Seen,
		CreatedAt:   m.CreatedAt,
	}
}

// ToMessageViews never returns nil so that an empty thread encodes as [].
func ToMessageViews(messages []domain.Message) []MessageView {
	views := lo.Map(messages, func(item domain.Message, _ int) MessageView {
		return ToMessageView(item)
	})
	if views == nil {
		return []MessageView{}
	}
	return views
}

// ToConversationViews maps summaries; online tells whether a peer currently has a live connection.
func ToConversationViews(summaries []domain.ConversationSummary, online func(string) bool) []ConversationView {
	views := lo.Map(summaries, func(item domain.ConversationSummary, _ int) ConversationView {
		view := ConversationView{
			ID:           item.ConversationID.String(),
			UserDetails:  ToUserSummary(item.Peer, online(item.Peer.ID)),
			MessageCount: item.MessageCount,
			UpdatedAt:    item.UpdatedAt,
		}
		if item.LastMessage != nil {
			view.LastMsg = lo.ToPtr(ToMessageView(*item.LastMessage))
		}
		return view
	})
	if views == nil {
		return []ConversationView{}
	}
	return views
}
