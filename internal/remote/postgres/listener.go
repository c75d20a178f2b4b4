package postgres

import (
	"fmt"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/remote"
)

const listenerPingInterval = 90 * time.Second

func (s *Store) startListener() error {
	if s.listener != nil {
		return nil
	}

	l := pq.NewListener(s.connStr, constants.DefaultListenerMinWait, constants.DefaultListenerMaxWait, s.onListenerEvent)
	if err := l.Listen(constants.ChangeChannel); err != nil {
		l.Close()
		return fmt.Errorf("failed to listen on %s: %w", constants.ChangeChannel, err)
	}
	s.listener = l
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.listen(l, s.stop)
	return nil
}

func (s *Store) listen(l *pq.Listener, stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case n, ok := <-l.Notify:
			if !ok {
				return
			}
			// A nil notification follows a reconnect; anything may have changed.
			if n == nil {
				s.events.Publish(remote.Event{Kind: remote.EventChange})
				continue
			}
			s.events.Publish(parseNotification(n.Extra))
		case <-ticker.C:
			if err := l.Ping(); err != nil {
				logger.Debug("change listener ping failed", "error", err)
			}
		}
	}
}

// parseNotification reads the "<table>:<user id>" payload written by the
// habitsync_notify_change trigger.
func parseNotification(payload string) remote.Event {
	ev := remote.Event{Kind: remote.EventChange}
	table, user, found := strings.Cut(payload, ":")
	if !found {
		ev.Table = payload
		return ev
	}
	ev.Table = table
	ev.UserID = user
	return ev
}

func (s *Store) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		s.setOnline(true)
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		if err != nil {
			logger.Warn("remote connection lost", "error", err)
		}
		s.setOnline(false)
	}
}

func (s *Store) setOnline(online bool) {
	if s.online.Swap(online) == online {
		return
	}
	s.events.Publish(remote.Event{Kind: remote.EventConnectivity, Status: s.Status()})
}
