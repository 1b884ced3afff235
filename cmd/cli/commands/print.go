package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/status"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

func statusColor(raw string) string {
	switch status.Normalize(raw) {
	case status.Available:
		return colorGreen
	case status.Working:
		return colorYellow
	case status.Cancelled, status.NoLongerAvailable:
		return colorRed
	case status.Complete:
		return colorDim
	}
	return ""
}

// cell pads s to width and wraps it in color when one is given
func cell(s string, width int, color string) string {
	if len(s) > width-1 {
		s = s[:width-2] + "…"
	}
	if color == "" {
		return fmt.Sprintf("%-*s", width, s)
	}
	return fmt.Sprintf("%s%-*s%s", color, width, s, colorReset)
}

func printRequests(w io.Writer, reqs []model.ServiceRequest) {
	if len(reqs) == 0 {
		fmt.Fprintln(w, "No requests to show.")
		return
	}

	const (
		idWidth     = 26
		typeWidth   = 22
		budgetWidth = 10
		statusWidth = 22
		whoWidth    = 22
	)

	fmt.Fprintf(w, "%s%s%s%s%s%s\n",
		cell("ID", idWidth, ""),
		cell("Type", typeWidth, ""),
		cell("Budget", budgetWidth, ""),
		cell("Status", statusWidth, ""),
		cell("Requester", whoWidth, ""),
		"Address")
	fmt.Fprintln(w, strings.Repeat("-", idWidth+typeWidth+budgetWidth+statusWidth+whoWidth+20))

	for _, r := range reqs {
		label := status.Normalize(r.Status)
		fmt.Fprintf(w, "%s%s%s%s%s%s\n",
			cell(r.ID, idWidth, ""),
			cell(r.TypeOfWork, typeWidth, ""),
			cell(fmt.Sprintf("%.2f", r.Budget), budgetWidth, ""),
			cell(label, statusWidth, statusColor(r.Status)),
			cell(r.Requester.DisplayName(), whoWidth, ""),
			r.Address)
		if provider, ok := r.AssignedProvider(); ok {
			fmt.Fprintf(w, "%s↳ provider: %s%s\n", strings.Repeat(" ", idWidth), provider.DisplayName(), etaSuffix(r.ETA))
		}
	}
	fmt.Fprintf(w, "\n%d request(s)\n", len(reqs))
}

func etaSuffix(eta string) string {
	if eta == "" {
		return ""
	}
	return " (ETA " + eta + ")"
}

func printBooking(w io.Writer, b model.Booking, completable bool) {
	what := ""
	if b.ServiceRequest != nil {
		what = b.ServiceRequest.TypeOfWork
	}
	marker := " "
	if completable {
		marker = "*"
	}
	fmt.Fprintf(w, "%s %s%s%s with %s, booked %s\n",
		marker,
		cell(b.ID, 26, ""),
		cell(what, 22, ""),
		cell(status.Normalize(b.Status), 12, statusColor(b.Status)),
		counterpart(b),
		formatTime(b.CreatedAt))
}

func counterpart(b model.Booking) string {
	parts := []string{}
	if b.Requester != nil {
		parts = append(parts, "requester "+b.Requester.DisplayName())
	}
	if b.Provider != nil {
		parts = append(parts, "provider "+b.Provider.DisplayName())
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " and ")
}

func printMessage(w io.Writer, m model.Message, selfID string) {
	who := m.Sender.DisplayName()
	if m.Sender.ID == selfID {
		who = "you"
	}
	fmt.Fprintf(w, "%s[%s]%s %s: %s %s(%s)%s\n",
		colorDim, formatTime(m.Timestamp), colorReset,
		who, m.Text,
		colorDim, m.Status, colorReset)
}

func printConversation(w io.Writer, c model.Conversation) {
	unread := ""
	if c.TotalUnreadCount > 0 {
		unread = fmt.Sprintf("%s(%d unread)%s ", colorGreen, c.TotalUnreadCount, colorReset)
	}
	last := "no messages yet"
	if c.LastMessage != nil {
		last = fmt.Sprintf("%q at %s", c.LastMessage.Text, formatTime(c.LastMessage.Timestamp))
	}
	complete := ""
	if c.CanComplete {
		complete = " [can complete]"
	}
	fmt.Fprintf(w, "%s %s%s%s, %d appointment(s)%s\n",
		cell(c.OtherUser.ID, 26, ""),
		cell(c.OtherUser.DisplayName(), 22, ""),
		unread, last, len(c.AppointmentIDs), complete)
}

func printNotification(w io.Writer, n model.Notification, route string) {
	color := ""
	if !n.Read {
		color = colorGreen
	}
	fmt.Fprintf(w, "%s %s %s\n   %s%s → %s%s\n",
		cell(n.ID, 26, color),
		formatTime(n.CreatedAt),
		n.Title,
		colorDim, n.Message, route, colorReset)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}
