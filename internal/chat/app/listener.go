package app

import (
	"shop_support_console/internal/chat/dedupe"
	"shop_support_console/internal/chat/domain"
	"shop_support_console/internal/chat/repository"
	"shop_support_console/pkg/logger"

	"go.uber.org/zap"
)

// UpstreamListener bridges the upstream socket into the console: every
// inbound event passes the connection-wide dedupe gate once, then feeds the
// roster and is fanned out to dashboard sessions over redis. Transcript
// sessions apply their own per-conversation gate on top, both sides are
// idempotent so replays are harmless.
type UpstreamListener struct {
	socket repository.SocketGateway
	roster *RosterUseCase
	pubsub repository.PubSub
	filter *dedupe.Filter
	typing *TypingTracker

	unsubs []func()
}

// NewUpstreamListener wire the listener, Start must be called to subscribe
func NewUpstreamListener(
	socket repository.SocketGateway,
	roster *RosterUseCase,
	pubsub repository.PubSub,
	typing *TypingTracker,
) *UpstreamListener {
	return &UpstreamListener{
		socket: socket,
		roster: roster,
		pubsub: pubsub,
		filter: dedupe.NewFilter(),
		typing: typing,
	}
}

// Start register on the socket gateway
func (l *UpstreamListener) Start() {
	l.unsubs = append(l.unsubs,
		l.socket.OnMessage(l.handleMessage),
		l.socket.OnStatusChange(l.handleStatus),
		l.socket.OnMessageRead(l.handleRead),
		l.socket.OnTyping(l.handleTyping),
		l.socket.OnConnectionChange(l.handleConnection),
	)
}

// Stop unregister everything
func (l *UpstreamListener) Stop() {
	for _, unsub := range l.unsubs {
		unsub()
	}
	l.unsubs = nil
}

func (l *UpstreamListener) handleMessage(ev domain.MessageEvent) {
	fp := dedupe.Fingerprint(ev)
	if l.filter.Seen(fp) {
		return
	}
	l.filter.MarkSeen(fp)

	l.roster.ApplyIncoming(ev)

	resp := domain.WSResponse{
		Action:  string(domain.NotifyMessage),
		Success: true,
		Payload: map[string]interface{}{
			"chat_id":   ev.ChatID,
			"message":   ev.Message,
			"sender_id": ev.SenderID,
			"timestamp": ev.Timestamp,
		},
	}
	l.publish(repository.ChatChannel(ev.ChatID), resp)
	l.publishRoster()
}

func (l *UpstreamListener) handleStatus(ev domain.StatusEvent) {
	l.roster.ApplyStatus(ev)

	resp := domain.WSResponse{
		Action:  string(domain.NotifyStatus),
		Success: true,
		Payload: map[string]interface{}{
			"chat_id":     ev.ChatID,
			"status":      ev.Status,
			"assigned_to": ev.AssignedTo,
		},
	}
	l.publish(repository.ChatChannel(ev.ChatID), resp)
	l.publishRoster()
}

func (l *UpstreamListener) handleRead(ev domain.ReadEvent) {
	resp := domain.WSResponse{
		Action:  string(domain.NotifyRead),
		Success: true,
		Payload: map[string]interface{}{
			"chat_id": ev.ChatID,
			"reader":  ev.Reader,
		},
	}
	l.publish(repository.ChatChannel(ev.ChatID), resp)
}

func (l *UpstreamListener) handleTyping(ev domain.TypingEvent) {
	l.typing.SetTyping(ev.ChatID, ev.Name, ev.Typing)

	resp := domain.WSResponse{
		Action:  string(domain.NotifyTyping),
		Success: true,
		Payload: map[string]interface{}{
			"chat_id":   ev.ChatID,
			"name":      ev.Name,
			"is_typing": ev.Typing,
		},
	}
	l.publish(repository.ChatChannel(ev.ChatID), resp)
}

func (l *UpstreamListener) handleConnection(up bool) {
	logger.Log.Info("upstream connectivity changed", zap.Bool("connected", up))
	resp := domain.WSResponse{
		Action:  string(domain.NotifyConnection),
		Success: true,
		Payload: map[string]interface{}{"connected": up},
	}
	l.publish(repository.RosterChannel, resp)
}

func (l *UpstreamListener) publishRoster() {
	resp := domain.WSResponse{
		Action:  string(domain.NotifyRoster),
		Success: true,
		Payload: map[string]interface{}{"entries": l.roster.Entries()},
	}
	l.publish(repository.RosterChannel, resp)
}

func (l *UpstreamListener) publish(channel string, resp domain.WSResponse) {
	if err := l.pubsub.Publish(channel, resp); err != nil {
		logger.Log.Errorf("pubsub publish failed:", err, zap.String("channel", channel))
	}
}
