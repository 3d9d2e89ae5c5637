package metrics

import (
	"math/big"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"stakerLedger/internal/model"
)

// Source exposes the ledger state the collector reports.
type Source interface {
	Pools() []model.Pool
	TotalPositions() uint64
}

// PoolCollector reports pool aggregates at scrape time.
type PoolCollector struct {
	source Source

	totalStaked    *prometheus.Desc
	openPositions  *prometheus.Desc
	poolsTotal     *prometheus.Desc
	positionsTotal *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

func NewPoolCollector(source Source) *PoolCollector {
	labels := []string{"pool_id", "asset_class"}
	return &PoolCollector{
		source: source,
		totalStaked: prometheus.NewDesc(
			namespace+"_pool_total_staked",
			"Amount currently staked in the pool (token count for erc721 pools)",
			labels, nil,
		),
		openPositions: prometheus.NewDesc(
			namespace+"_pool_open_positions",
			"Number of open positions in the pool",
			labels, nil,
		),
		poolsTotal: prometheus.NewDesc(
			namespace+"_pools_total",
			"Number of pools ever created",
			nil, nil,
		),
		positionsTotal: prometheus.NewDesc(
			namespace+"_positions_minted_total",
			"Number of positions ever minted",
			nil, nil,
		),
	}
}

// Describe describes to Prometheus the metrics this collector will collect
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalStaked
	ch <- c.openPositions
	ch <- c.poolsTotal
	ch <- c.positionsTotal
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	pools := c.source.Pools()
	for _, p := range pools {
		id := strconv.FormatUint(p.ID, 10)
		class := p.AssetClass.String()
		staked, _ := new(big.Float).SetInt(p.TotalStaked).Float64()
		ch <- prometheus.MustNewConstMetric(c.totalStaked, prometheus.GaugeValue, staked, id, class)
		ch <- prometheus.MustNewConstMetric(c.openPositions, prometheus.GaugeValue, float64(p.OpenPositions), id, class)
	}
	ch <- prometheus.MustNewConstMetric(c.poolsTotal, prometheus.CounterValue, float64(len(pools)))
	ch <- prometheus.MustNewConstMetric(c.positionsTotal, prometheus.CounterValue, float64(c.source.TotalPositions()))
}
