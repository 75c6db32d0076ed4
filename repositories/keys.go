package repositories

import (
	"fmt"
	"strings"

	"duo-chat/domain"

	"github.com/google/uuid"
)

// Key layout, all in one badger keyspace:
//
//	user:id:{id}                       account record
//	user:email:{email}                 account id (unique email index)
//	conv:pair:{min}:{max}              conversation record
//	conv:id:{conversationID}           pair key
//	conv:user:{userID}:{conversationID} pair key (per-user listing)
//	msg:body:{messageID}               message record
//	msg:link:{conversationID}:{seq}    message id, seq zero padded to 19 digits
const (
	userIDPrefix    = "user:id:"
	userEmailPrefix = "user:email:"
	convPairPrefix  = "conv:pair:"
	convIDPrefix    = "conv:id:"
	convUserPrefix  = "conv:user:"
	msgBodyPrefix   = "msg:body:"
	msgLinkPrefix   = "msg:link:"
)

func userKey(id string) []byte {
	return []byte(userIDPrefix + id)
}

func emailKey(email string) []byte {
	return []byte(userEmailPrefix + normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func pairKey(key domain.PairKey) []byte {
	return []byte(convPairPrefix + string(key))
}

func conversationIDKey(id uuid.UUID) []byte {
	return []byte(convIDPrefix + id.String())
}

func userConversationPrefix(userID string) []byte {
	return []byte(convUserPrefix + userID + ":")
}

func userConversationKey(userID string, id uuid.UUID) []byte {
	return append(userConversationPrefix(userID), id.String()...)
}

func messageBodyKey(id uuid.UUID) []byte {
	return []byte(msgBodyPrefix + id.String())
}

func messageLinkPrefix(conversationID uuid.UUID) []byte {
	return []byte(msgLinkPrefix + conversationID.String() + ":")
}

func messageLinkKey(conversationID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d", msgLinkPrefix, conversationID, seq))
}
