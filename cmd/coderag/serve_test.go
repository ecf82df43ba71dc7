package main

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeTreeWatcher struct {
	calls    []string
	startErr error
}

func (f *fakeTreeWatcher) Start(context.Context) error {
	f.calls = append(f.calls, "start")
	return f.startErr
}

func (f *fakeTreeWatcher) InitialIndex(context.Context) int {
	f.calls = append(f.calls, "initial index")
	return 0
}

func TestStartIndexing(t *testing.T) {
	startErr := errors.New("inotify limit reached")

	tests := []struct {
		name        string
		skipInitial bool
		startErr    error
		want        []string
		wantErr     error
	}{
		{name: "watch before initial index", want: []string{"start", "initial index"}},
		{name: "skip initial", skipInitial: true, want: []string{"start"}},
		{name: "start failure skips indexing", startErr: startErr, want: []string{"start"}, wantErr: startErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeTreeWatcher{startErr: tt.startErr}

			err := startIndexing(context.Background(), w, tt.skipInitial)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("startIndexing() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(w.calls, tt.want) {
				t.Errorf("calls = %v, want %v", w.calls, tt.want)
			}
		})
	}
}
