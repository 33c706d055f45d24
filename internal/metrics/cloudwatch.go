package metrics

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	appconfig "cryptobridge/config"
	"cryptobridge/logger"
)

//go:embed dashboard.json
var dashboardTemplate string

const (
	defaultDashboardNamespace = "CryptoBridge"
	defaultDashboardRegion    = "us-east-1"
	maxDatumsPerRequest       = 500
	// CloudWatch allows at most 30 dimensions per datum.
	maxDimensions = 30
)

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, in *cloudwatch.PutDashboardInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// CloudWatchPublisher periodically copies the adapter's Prometheus counters
// and the runtime report into CloudWatch.
type CloudWatchPublisher struct {
	client    cloudWatchAPI
	gatherer  prometheus.Gatherer
	namespace string
	region    string
	interval  time.Duration
	log       *logger.Log
}

// NewCloudWatchPublisher loads the default AWS configuration for cfg.Region.
func NewCloudWatchPublisher(ctx context.Context, cfg appconfig.CloudWatchConfig, gatherer prometheus.Gatherer, log *logger.Log) (*CloudWatchPublisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	region := cfg.Region
	if awsCfg.Region != "" {
		region = awsCfg.Region
	}
	return newCloudWatchPublisher(cloudwatch.NewFromConfig(awsCfg), gatherer, cfg.Namespace, region, cfg.Interval, log), nil
}

func newCloudWatchPublisher(client cloudWatchAPI, gatherer prometheus.Gatherer, namespace, region string, interval time.Duration, log *logger.Log) *CloudWatchPublisher {
	if namespace == "" {
		namespace = defaultDashboardNamespace
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &CloudWatchPublisher{
		client:    client,
		gatherer:  gatherer,
		namespace: namespace,
		region:    region,
		interval:  interval,
		log:       log,
	}
}

// Start publishes every interval until ctx ends.
func (p *CloudWatchPublisher) Start(ctx context.Context) {
	log := p.log.WithComponent("cloudwatch")
	log.WithFields(logger.Fields{
		"namespace": p.namespace,
		"region":    p.region,
		"interval":  p.interval.String(),
	}).Info("starting CloudWatch publisher")

	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.Publish(ctx); err != nil {
					log.WithError(err).Warn("failed to publish CloudWatch metrics")
				}
			}
		}
	}()
}

// Publish sends one snapshot of every counter and gauge.
func (p *CloudWatchPublisher) Publish(ctx context.Context) error {
	data, err := p.collect()
	if err != nil {
		return err
	}

	for start := 0; start < len(data); start += maxDatumsPerRequest {
		end := start + maxDatumsPerRequest
		if end > len(data) {
			end = len(data)
		}
		if _, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data[start:end],
		}); err != nil {
			return err
		}
	}

	p.log.WithComponent("cloudwatch").WithFields(logger.Fields{"datums": len(data)}).Debug("published metrics to CloudWatch")
	return nil
}

func (p *CloudWatchPublisher) collect() ([]cwtypes.MetricDatum, error) {
	families, err := p.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	now := time.Now()
	var data []cwtypes.MetricDatum
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			data = append(data, cwtypes.MetricDatum{
				MetricName: aws.String(mf.GetName()),
				Dimensions: dimensions(m.GetLabel()),
				Timestamp:  aws.Time(now),
				Unit:       cwtypes.StandardUnitCount,
				Value:      aws.Float64(value),
			})
		}
	}

	report := logger.Snapshot()
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Timestamp: aws.Time(now), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(report.CPUPercent)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Timestamp: aws.Time(now), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(report.MemoryMB)},
		cwtypes.MetricDatum{MetricName: aws.String("Goroutines"), Timestamp: aws.Time(now), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(report.Goroutines))},
	)
	return data, nil
}

func dimensions(labels []*dto.LabelPair) []cwtypes.Dimension {
	dims := make([]cwtypes.Dimension, 0, len(labels))
	for _, l := range labels {
		if l.GetValue() == "" || len(dims) == maxDimensions {
			continue
		}
		dims = append(dims, cwtypes.Dimension{Name: aws.String(l.GetName()), Value: aws.String(l.GetValue())})
	}
	return dims
}

// CreateDashboard writes the embedded dashboard under name.
func (p *CloudWatchPublisher) CreateDashboard(ctx context.Context, name string) error {
	body := dashboardTemplate
	if p.namespace != defaultDashboardNamespace {
		body = strings.ReplaceAll(body, fmt.Sprintf("%q", defaultDashboardNamespace), fmt.Sprintf("%q", p.namespace))
	}
	if p.region != "" {
		body = strings.ReplaceAll(body, fmt.Sprintf("%q", defaultDashboardRegion), fmt.Sprintf("%q", p.region))
	}
	if !json.Valid([]byte(body)) {
		return fmt.Errorf("dashboard template is not valid JSON after substitution")
	}

	if _, err := p.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(name),
		DashboardBody: aws.String(body),
	}); err != nil {
		return err
	}
	p.log.WithComponent("cloudwatch").WithFields(logger.Fields{"dashboard": name}).Debug("updated CloudWatch dashboard")
	return nil
}
