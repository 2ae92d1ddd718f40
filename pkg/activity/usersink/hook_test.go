package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-aws-bundle/pkg/activity"
	"github.com/goliatone/go-aws-bundle/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsLoadEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Component: "billing-api"}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()
	loadID := uuid.NewString()

	event := activity.BuildServicesRegisteredEvent(activity.ServicesRegisteredInput{
		LoadEventInput: activity.LoadEventInput{
			ActorID:    actorID.String(),
			TenantID:   tenantID.String(),
			LoadID:     loadID,
			Channel:    "aws",
			OccurredAt: now,
		},
		FactoryID: "aws_sdk",
		Services:  map[string]string{"aws.s3": "*s3.Client"},
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID || record.UserID != uuid.Nil {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.Verb != activity.VerbServicesRegistered || record.ObjectID != loadID || record.Channel != "aws" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["load_id"] != loadID || record.Data["component"] != "billing-api" || record.Data["factory_id"] != "aws_sdk" {
		t.Fatalf("unexpected data: %+v", record.Data)
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{Verb: "aws.config.processed"})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for incomplete event, got %d", len(sink.records))
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("nil sink must be a no-op, got %v", err)
	}
}

func TestHookNotifyReturnsSinkError(t *testing.T) {
	boom := errors.New("sink down")
	hook := usersink.Hook{Sink: &recordingSink{err: boom}}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbConfigProcessed,
		ObjectType: activity.ObjectTypeConfig,
		ObjectID:   "not-a-uuid",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
