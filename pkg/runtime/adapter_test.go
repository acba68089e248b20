package runtime

import "testing"

func TestCPUSharesAndQuota(t *testing.T) {
	cases := []struct {
		cores          float64
		wantShares     uint64
		wantQuota      int64
		wantPeriod     uint64
	}{
		{0, 0, 0, 0},
		{1.0, 1024, 100000, 100000},
		{0.5, 512, 50000, 100000},
		{2.0, 2048, 200000, 100000},
	}

	for _, c := range cases {
		shares, quota, period := cpuSharesAndQuota(c.cores)
		if shares != c.wantShares || quota != c.wantQuota || period != c.wantPeriod {
			t.Errorf("cpuSharesAndQuota(%v) = (%d, %d, %d), want (%d, %d, %d)",
				c.cores, shares, quota, period, c.wantShares, c.wantQuota, c.wantPeriod)
		}
	}
}

func TestMatchesLabels(t *testing.T) {
	have := map[string]string{"range_id": "r1", "network_id": "n1"}

	if !matchesLabels(have, nil) {
		t.Error("nil filter should match everything")
	}
	if !matchesLabels(have, map[string]string{"range_id": "r1"}) {
		t.Error("subset filter should match")
	}
	if matchesLabels(have, map[string]string{"range_id": "r2"}) {
		t.Error("mismatched value should not match")
	}
	if matchesLabels(have, map[string]string{"missing": "x"}) {
		t.Error("missing key should not match")
	}
}

func TestConflistPath(t *testing.T) {
	got := conflistPath("/etc/cni", "range-1-net")
	want := "/etc/cni/cyroid-range-1-net.conflist"
	if got != want {
		t.Errorf("conflistPath() = %q, want %q", got, want)
	}
}
