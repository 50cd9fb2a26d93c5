package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/godbus/dbus/v5"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

const (
	login1Dest             = "org.freedesktop.login1"
	login1SessionInterface = "org.freedesktop.login1.Session"
)

type sessionSource interface {
	ListSessions() ([]login1.Session, error)
	Close()
}

type propertyReader func(path dbus.ObjectPath, property string) (string, error)

type busConn interface {
	Close() error
}

// Logind lists login sessions from systemd-logind.
type Logind struct {
	sessions sessionSource
	bus      busConn
	property propertyReader
}

func NewLogind() (*Logind, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("connect to logind: %w", err)
	}
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	return &Logind{
		sessions: conn,
		bus:      bus,
		property: func(path dbus.ObjectPath, property string) (string, error) {
			v, err := bus.Object(login1Dest, path).GetProperty(login1SessionInterface + "." + property)
			if err != nil {
				return "", err
			}
			s, ok := v.Value().(string)
			if !ok {
				return "", fmt.Errorf("property %s is %T, not a string", property, v.Value())
			}
			return s, nil
		},
	}, nil
}

func (l *Logind) Close() {
	l.sessions.Close()
	if l.bus != nil {
		if err := l.bus.Close(); err != nil {
			zlog.Sugar().Debugf("close system bus: %v", err)
		}
	}
}

// ListSessions returns every session with its type, class and state. Sessions that vanish
// while being read are skipped.
func (l *Logind) ListSessions(ctx context.Context) ([]models.Session, error) {
	raw, err := l.sessions.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]models.Session, 0, len(raw))
	for _, s := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session := models.Session{ID: s.ID, User: s.User, Seat: s.Seat}
		fields := []struct {
			name string
			dst  *string
		}{
			{"Type", &session.Type},
			{"Class", &session.Class},
			{"State", &session.State},
		}

		gone := false
		for _, f := range fields {
			value, err := l.property(s.Path, f.name)
			if err != nil {
				zlog.Sugar().Debugf("session %s: read %s: %v", s.ID, f.name, err)
				gone = true
				break
			}
			*f.dst = value
		}
		if !gone {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}
