package session

import (
	"context"
	"sync"
)

type fakeAPI struct {
	mu sync.Mutex

	check    CheckResult
	checkErr error

	start      StartResult
	startQueue []StartResult
	startErr   error

	resume    ResumeResult
	resumeErr error

	update      UpdateResult
	updateErr   error
	failUpdates int

	checkCalls int
	startForce []bool
	resumeIDs  []string
	updates    []ProgressUpdate
}

func (f *fakeAPI) CheckView(_ context.Context, _ string) (CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	return f.check, f.checkErr
}

func (f *fakeAPI) StartView(_ context.Context, _ string, forceNew bool) (StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startForce = append(f.startForce, forceNew)
	if len(f.startQueue) > 0 {
		res := f.startQueue[0]
		f.startQueue = f.startQueue[1:]
		return res, f.startErr
	}
	return f.start, f.startErr
}

func (f *fakeAPI) ResumeView(_ context.Context, _ string, viewID string) (ResumeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeIDs = append(f.resumeIDs, viewID)
	return f.resume, f.resumeErr
}

func (f *fakeAPI) UpdateView(_ context.Context, _ string, upd ProgressUpdate) (UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	if f.failUpdates > 0 {
		f.failUpdates--
		return UpdateResult{}, f.updateErr
	}
	return f.update, nil
}

func (f *fakeAPI) sentUpdates() []ProgressUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ProgressUpdate, len(f.updates))
	copy(out, f.updates)
	return out
}

type fakePlayer struct {
	plays  int
	pauses int
	seeks  []float64
}

func (p *fakePlayer) Play() error { p.plays++; return nil }

func (p *fakePlayer) Pause() error { p.pauses++; return nil }

func (p *fakePlayer) SeekTo(seconds float64) error {
	p.seeks = append(p.seeks, seconds)
	return nil
}

type fakePrompter struct {
	prompts []Prompt
}

func (p *fakePrompter) Show(prompt Prompt) {
	p.prompts = append(p.prompts, prompt)
}
