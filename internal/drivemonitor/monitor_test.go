package drivemonitor

import (
	"context"
	"testing"
	"time"
)

func statusSeq(seq ...DriveStatus) StatusChecker {
	i := 0
	return func(device string) (DriveStatus, error) {
		if i >= len(seq) {
			return seq[len(seq)-1], nil
		}
		s := seq[i]
		i++
		return s, nil
	}
}

type fakeLabels struct{ label string }

func (f fakeLabels) ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error) {
	return f.label, nil
}

type fakeEjector struct{ called []string }

func (f *fakeEjector) Eject(ctx context.Context, device string) error {
	f.called = append(f.called, device)
	return nil
}

func TestMonitorEmitsSyntheticInsertAtStartup(t *testing.T) {
	m := New([]string{"/dev/sr0"}, statusSeq(DriveStatusDiscOK), fakeLabels{label: "ARRESTED_DEV_S1D1"}, &fakeEjector{}, Options{PollInterval: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	select {
	case ev := <-m.Events():
		if ev.Type != EventInserted || ev.DriveID != "/dev/sr0" || ev.VolumeLabel != "ARRESTED_DEV_S1D1" {
			t.Fatalf("unexpected startup event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for synthetic insert event")
	}
}

func TestMonitorDetectsInsertThenRemove(t *testing.T) {
	checker := statusSeq(DriveStatusNoDisc, DriveStatusDiscOK, DriveStatusDiscOK, DriveStatusNoDisc, DriveStatusNoDisc)
	m := New([]string{"/dev/sr0"}, checker, fakeLabels{label: "MY_MOVIE"}, &fakeEjector{}, Options{PollInterval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	first := <-m.Events()
	if first.Type != EventInserted {
		t.Fatalf("expected inserted, got %+v", first)
	}
	second := <-m.Events()
	if second.Type != EventRemoved || second.VolumeLabel != "" {
		t.Fatalf("expected removed with empty label, got %+v", second)
	}
}

func TestMonitorPollFailureLeavesBaselineUnchanged(t *testing.T) {
	calls := 0
	checker := func(device string) (DriveStatus, error) {
		calls++
		if calls == 2 {
			return DriveStatusNoInfo, errUnavailable{}
		}
		return DriveStatusNoDisc, nil
	}
	m := New([]string{"/dev/sr0"}, checker, fakeLabels{}, &fakeEjector{}, Options{PollInterval: 5 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	select {
	case ev := <-m.Events():
		t.Fatalf("did not expect an event from an empty, then errored, drive: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "drive unavailable" }

func TestMonitorEject(t *testing.T) {
	ej := &fakeEjector{}
	m := New([]string{"/dev/sr0"}, statusSeq(DriveStatusNoDisc), fakeLabels{}, ej, Options{}, nil)
	if err := m.Eject(context.Background(), "/dev/sr0"); err != nil {
		t.Fatalf("Eject: %v", err)
	}
	if len(ej.called) != 1 || ej.called[0] != "/dev/sr0" {
		t.Fatalf("expected eject to be called on /dev/sr0, got %v", ej.called)
	}
}
