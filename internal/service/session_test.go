package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"project-oversight-be/internal/broadcast"
	"project-oversight-be/internal/generator"
	"project-oversight-be/internal/service/dto"
	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/store"
)

type stubContent struct{}

func (stubContent) Scenario(_ context.Context, _ generator.SessionContext) *generator.Scenario {
	return generator.FallbackScenario(1)
}

func (stubContent) Outcome(_ context.Context, _ generator.SessionContext, _ generator.Option, _ map[string]float64) *generator.Outcome {
	return generator.FallbackOutcome(1)
}

func newTestService(t *testing.T) *SessionService {
	t.Helper()

	svc := NewSessionService(
		broadcast.NewHub(),
		store.NewMemoryStore(),
		stubContent{},
		game.DefaultRules(),
	)

	t.Cleanup(svc.Close)

	return svc
}

func TestCreateSession_RegistersHost(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.CreateSession(dto.CreateSessionRequest{HostName: "  Hera  "})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	if len(resp.SessionID) != 6 {
		t.Fatalf("session code should be 6 chars, got %q", resp.SessionID)
	}

	if resp.HostID == "" {
		t.Fatalf("host id should be assigned")
	}

	if resp.Host.Name != "Hera" {
		t.Fatalf("host name should be trimmed, got %q", resp.Host.Name)
	}

	snap, err := svc.GetState(resp.SessionID)
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}

	if snap.Phase != game.STAGE_LOBBY {
		t.Fatalf("new session phase, want Lobby got %s", snap.Phase)
	}

	if len(snap.Players) != 1 || snap.Players[0].ID != resp.HostID {
		t.Fatalf("host should be pre-registered, players %+v", snap.Players)
	}
}

func TestCreateSession_RejectsEmptyHostName(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateSession(dto.CreateSessionRequest{HostName: "   "}); err == nil {
		t.Fatalf("blank host name should be rejected")
	}
}

func TestAttach_NormalizesSessionCode(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.CreateSession(dto.CreateSessionRequest{HostName: "Hera"})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	// 会话码口头传播，匹配时不区分大小写也不计空白
	lower := "  " + strings.ToLower(resp.SessionID) + " "

	if _, err := svc.Attach(lower); err != nil {
		t.Fatalf("lowercase code should resolve, got: %v", err)
	}

	if _, err := svc.Attach("NOPE99"); err != game.ErrSessionNotFound {
		t.Fatalf("unknown code, want ErrSessionNotFound got: %v", err)
	}
}

func TestGetState_UnknownSession(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.GetState("NOPE99"); err != game.ErrSessionNotFound {
		t.Fatalf("want ErrSessionNotFound, got: %v", err)
	}
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.CreateSession(dto.CreateSessionRequest{HostName: "Hera"})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	sub, err := svc.Subscribe(resp.SessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer svc.Unsubscribe(sub)

	reqCh, err := svc.Attach(resp.SessionID)
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	reqCh <- game.RequestWrapper{
		ReqType:    game.REQ_JOIN_SESSION,
		NativeData: &game.JoinSessionRequest{PlayerName: "Bui", RespCh: make(chan game.ResponseWrapper, 8)},
	}

	select {
	case msg := <-sub.C():
		snap, ok := msg.Data.(*game.Snapshot)
		if !ok {
			t.Fatalf("unexpected message payload %T", msg.Data)
		}

		if snap.SessionID != resp.SessionID {
			t.Fatalf("snapshot session, want %s got %s", resp.SessionID, snap.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber should receive a snapshot after a join")
	}
}
