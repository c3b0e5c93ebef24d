package main

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/usage"
)

type staticUsers []string

func (u staticUsers) ListIDs(ctx context.Context) ([]string, error) {
	return u, nil
}

type fakeProjects struct {
	ensured []string
}

func (f *fakeProjects) EnsureDefault(ctx context.Context, userID string) (*projects.Project, error) {
	f.ensured = append(f.ensured, userID)
	return &projects.Project{ID: "p-" + userID, UserID: userID, Name: projects.DefaultName}, nil
}

type recorded struct {
	userID    string
	projectID string
	credits   int64
	typ       usage.Type
	metadata  map[string]interface{}
	at        time.Time
}

type fakeLedger struct {
	events []recorded
	err    error
}

func (f *fakeLedger) RecordAt(ctx context.Context, userID, projectID string, credits int64, typ usage.Type, metadata map[string]interface{}, at time.Time) (*usage.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, recorded{userID, projectID, credits, typ, metadata, at})
	return &usage.Event{ProjectID: projectID, Credits: credits, Type: typ, CreatedAt: at}, nil
}

func newTestSeeder(users staticUsers, ledger *fakeLedger) (*seeder, *fakeProjects) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := &fakeProjects{}
	return &seeder{
		users:    users,
		projects: p,
		ledger:   ledger,
		rng:      rand.New(rand.NewPCG(1, 2)),
		now:      func() time.Time { return time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC) },
		log:      log,
	}, p
}

func TestSeeder_Run(t *testing.T) {
	ledger := &fakeLedger{}
	s, p := newTestSeeder(staticUsers{"u1", "u2"}, ledger)

	n, err := s.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u2"}, p.ensured)
	assert.Equal(t, len(ledger.events), n)

	perDay := map[string]int{}
	first := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, ev := range ledger.events {
		assert.Equal(t, "p-"+ev.userID, ev.projectID)
		assert.GreaterOrEqual(t, ev.credits, int64(10))
		assert.LessOrEqual(t, ev.credits, int64(109))
		assert.True(t, ev.typ.Valid())
		assert.Contains(t, ev.metadata, "requestType")
		assert.Contains(t, ev.metadata, "status")
		assert.Contains(t, ev.metadata, "duration")
		assert.False(t, ev.at.Before(first), "event before window: %v", ev.at)
		assert.True(t, ev.at.Before(last), "event after today: %v", ev.at)
		perDay[ev.userID+ev.at.Format("2006-01-02")]++
	}

	assert.Len(t, perDay, 2*seedDays)
	for day, count := range perDay {
		assert.True(t, count >= 1 && count <= 3, "%s has %d events", day, count)
	}
}

func TestSeeder_StopsOnError(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("pq: connection reset")}
	s, _ := newTestSeeder(staticUsers{"u1", "u2"}, ledger)

	n, err := s.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u1")
	assert.Zero(t, n)
}
