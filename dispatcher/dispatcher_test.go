package dispatcher_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/dispatcher"
	"gitlab.com/kockalogger/kockalogger/message"
	"gitlab.com/kockalogger/kockalogger/parser"
)

type fakeModule struct {
	name      string
	interest  dispatcher.Interest
	props     []string
	executed  []*message.Message
	execErr   error
	panicExec bool
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Setup(*cache.Cache) error { return nil }

func (m *fakeModule) Interested(*message.Message) (dispatcher.Interest, []string) {
	return m.interest, m.props
}

func (m *fakeModule) Execute(_ context.Context, msg *message.Message) error {
	if m.panicExec {
		panic("boom")
	}
	m.executed = append(m.executed, msg)
	return m.execErr
}

func (m *fakeModule) Kill() error { return nil }

func TestDispatchSkipDoesNotExecute(t *testing.T) {
	t.Parallel()
	m := &fakeModule{name: "skip", interest: dispatcher.Skip}
	d := dispatcher.New([]dispatcher.Module{m}, nil, nil, nil, zerolog.Nop())

	d.Dispatch(context.Background(), &message.Message{Type: message.TypeEdit})

	assert.Empty(t, m.executed)
}

func TestDispatchExecuteNowRunsImmediately(t *testing.T) {
	t.Parallel()
	m := &fakeModule{name: "now", interest: dispatcher.ExecuteNow}
	d := dispatcher.New([]dispatcher.Module{m}, nil, nil, nil, zerolog.Nop())

	msg := &message.Message{Type: message.TypeEdit, Page: "Test"}
	d.Dispatch(context.Background(), msg)

	require.Len(t, m.executed, 1)
	assert.Equal(t, "Test", m.executed[0].Page)
}

func TestDispatchNeedsEnrichmentWithUnknownPropertyStillExecutes(t *testing.T) {
	t.Parallel()
	m := &fakeModule{name: "enrich", interest: dispatcher.NeedsEnrichment, props: []string{"unrecognized-property"}}
	d := dispatcher.New([]dispatcher.Module{m}, nil, nil, nil, zerolog.Nop())

	msg := &message.Message{Type: message.TypeEdit, Page: "Test"}
	d.Dispatch(context.Background(), msg)

	require.Len(t, m.executed, 1)
	assert.Equal(t, "Test", m.executed[0].Page)
}

func TestDispatchRecoversModulePanic(t *testing.T) {
	t.Parallel()
	m := &fakeModule{name: "panicky", interest: dispatcher.ExecuteNow, panicExec: true}
	d := dispatcher.New([]dispatcher.Module{m}, nil, nil, nil, zerolog.Nop())

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), &message.Message{Type: message.TypeEdit})
	})
}

func TestDispatchLogParseFailWithNilRetryIsNoop(t *testing.T) {
	t.Parallel()
	d := dispatcher.New(nil, nil, nil, nil, zerolog.Nop())

	msg := &message.Message{
		Type:      message.TypeError,
		ErrorCode: parser.ErrCodeLogParseFail,
		Wiki:      "community",
	}
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), msg)
	})
}

func TestDispatchMultipleModulesEachExecuteIndependently(t *testing.T) {
	t.Parallel()
	a := &fakeModule{name: "a", interest: dispatcher.ExecuteNow}
	b := &fakeModule{name: "b", interest: dispatcher.Skip}
	c := &fakeModule{name: "c", interest: dispatcher.ExecuteNow}
	d := dispatcher.New([]dispatcher.Module{a, b, c}, nil, nil, nil, zerolog.Nop())

	d.Dispatch(context.Background(), &message.Message{Type: message.TypeEdit})

	assert.Len(t, a.executed, 1)
	assert.Empty(t, b.executed)
	assert.Len(t, c.executed, 1)
}
