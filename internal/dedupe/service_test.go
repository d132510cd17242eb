package dedupe

import "testing"

func TestClampRunLimit(t *testing.T) {
	svc := &Service{runCap: defaultRunCap}

	tests := []struct {
		name   string
		runCap int
		limit  int
		want   int
	}{
		{"zero uses default", 0, 0, defaultRunLimit},
		{"negative uses default", 0, -5, defaultRunLimit},
		{"in range passes through", 0, 42, 42},
		{"over cap is capped", 0, defaultRunCap + 1, defaultRunCap},
		{"configured cap applies", 100, 250, 100},
		{"configured cap lowers the default", 100, 0, 100},
		{"cap can be raised", 2000, 1500, 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.runCap = defaultRunCap
			svc.SetRunCap(tt.runCap)
			if got := svc.clampRunLimit(tt.limit); got != tt.want {
				t.Errorf("clampRunLimit(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestSetRunCapIgnoresNonPositive(t *testing.T) {
	svc := &Service{runCap: defaultRunCap}
	svc.SetRunCap(0)
	svc.SetRunCap(-1)
	if svc.runCap != defaultRunCap {
		t.Errorf("runCap = %d, want %d", svc.runCap, defaultRunCap)
	}
}
