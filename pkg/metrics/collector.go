package metrics

import (
	"time"

	"github.com/cyroid/cyroid/pkg/repository"
)

// Collector periodically samples the repository's entity counts into the
// gauge metrics, since BoltDB has no native change-notification hook.
type Collector struct {
	repo   repository.Repository
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over repo.
func NewCollector(repo repository.Repository) *Collector {
	return &Collector{
		repo:   repo,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRangeMetrics()
	c.collectVMMetrics()
	c.collectNetworkMetrics()
	c.collectArtifactMetrics()
}

func (c *Collector) collectRangeMetrics() {
	ranges, err := c.repo.ListRanges()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, r := range ranges {
		counts[string(r.Status)]++
	}

	RangesTotal.Reset()
	for status, count := range counts {
		RangesTotal.WithLabelValues(status).Set(float64(count))
	}
}

func (c *Collector) collectVMMetrics() {
	vms, err := c.repo.ListVMs()
	if err != nil {
		return
	}

	templates, err := c.repo.ListVMTemplates()
	if err != nil {
		return
	}
	vmType := make(map[string]string, len(templates))
	for _, t := range templates {
		vmType[t.ID] = string(t.VMType)
	}

	type key struct{ status, vmType string }
	counts := make(map[key]int)
	for _, vm := range vms {
		counts[key{string(vm.Status), vmType[vm.TemplateID]}]++
	}

	VMsTotal.Reset()
	for k, count := range counts {
		VMsTotal.WithLabelValues(k.status, k.vmType).Set(float64(count))
	}
}

func (c *Collector) collectNetworkMetrics() {
	networks, err := c.repo.ListNetworks()
	if err != nil {
		return
	}
	NetworksTotal.Set(float64(len(networks)))
}

func (c *Collector) collectArtifactMetrics() {
	artifacts, err := c.repo.ListArtifacts()
	if err != nil {
		return
	}
	ArtifactsTotal.Set(float64(len(artifacts)))
}
