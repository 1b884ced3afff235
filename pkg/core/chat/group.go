// Package chat groups per-appointment chats into conversations and keeps the
// open conversation in sync with the realtime channel.
package chat

import (
	"sort"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// GroupConversations merges chat entries that share a counterpart into one
// conversation. The group keeps the newest last message (with its request and
// status), sums unread counts and ORs canComplete. Groups are sorted by last
// activity, newest first; groups without messages sort last.
func GroupConversations(entries []model.ChatEntry) []model.Conversation {
	index := make(map[string]int)
	var groups []model.Conversation

	for _, e := range entries {
		key := e.OtherUser.ID
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, model.Conversation{
				OtherUser:        e.OtherUser,
				AppointmentIDs:   []string{e.AppointmentID},
				LastMessage:      e.LastMessage,
				ServiceRequest:   e.ServiceRequest,
				Status:           e.Status,
				TotalUnreadCount: e.UnreadCount,
				CanComplete:      e.CanComplete,
			})
			continue
		}

		g := &groups[i]
		g.AppointmentIDs = append(g.AppointmentIDs, e.AppointmentID)
		g.TotalUnreadCount += e.UnreadCount
		if e.LastMessage != nil && (g.LastMessage == nil || e.LastMessage.Timestamp.After(g.LastMessage.Timestamp)) {
			g.LastMessage = e.LastMessage
			g.ServiceRequest = e.ServiceRequest
			g.Status = e.Status
		}
		if e.CanComplete {
			g.CanComplete = true
		}
		if !g.OtherUser.Resolved() && e.OtherUser.Resolved() {
			g.OtherUser = e.OtherUser
		}
	}

	SortConversations(groups)
	return groups
}

// SortConversations orders conversations by last activity, newest first
func SortConversations(convs []model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivity().After(convs[j].LastActivity())
	})
}
