package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/pkg/interfaces"
	"github.com/inferloop/tabanon/pkg/models"
)

type Config struct {
	Records   int
	ZipCodes  int
	Diseases  []string
	MinAge    int
	MaxAge    int
	Seed      int64
	OutputDir string
}

type Generator struct {
	config *Config
	logger *logrus.Logger
	rand   *rand.Rand
}

func main() {
	var (
		records  = flag.Int("records", 1000, "Number of records to generate")
		zipCodes = flag.Int("zips", 40, "Number of distinct zip codes")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		output   = flag.String("output", "testdata", "Output directory for census.csv and job.yaml")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	config := &Config{
		Records:   *records,
		ZipCodes:  *zipCodes,
		Diseases:  []string{"flu", "gastritis", "bronchitis", "pneumonia", "asthma", "migraine"},
		MinAge:    17,
		MaxAge:    90,
		Seed:      *seed,
		OutputDir: *output,
	}
	generator := NewGenerator(config, logger)

	logger.WithFields(logrus.Fields{
		"records":    config.Records,
		"zip_codes":  config.ZipCodes,
		"seed":       config.Seed,
		"output_dir": config.OutputDir,
	}).Info("Starting test data generation")

	ds, err := generator.Generate()
	if err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}
	if err := generator.Save(context.Background(), ds); err != nil {
		log.Fatalf("Failed to save data: %v", err)
	}

	logger.WithField("output_dir", config.OutputDir).Info("Test data generation completed")
}

func NewGenerator(config *Config, logger *logrus.Logger) *Generator {
	return &Generator{
		config: config,
		logger: logger,
		rand:   rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate draws census-like records: name, age, sex, zip, disease
func (g *Generator) Generate() (*models.Dataset, error) {
	if g.config.Records <= 0 || g.config.ZipCodes <= 0 || g.config.MaxAge < g.config.MinAge {
		return nil, fmt.Errorf("invalid generator configuration")
	}
	zips := make([]string, g.config.ZipCodes)
	for i := range zips {
		zips[i] = fmt.Sprintf("%05d", 10000+g.rand.Intn(89999))
	}

	rows := make([][]string, g.config.Records)
	for i := range rows {
		sex := "female"
		if g.rand.Intn(2) == 0 {
			sex = "male"
		}
		rows[i] = []string{
			fmt.Sprintf("person-%d", i),
			strconv.Itoa(g.config.MinAge + g.rand.Intn(g.config.MaxAge-g.config.MinAge+1)),
			sex,
			zips[g.rand.Intn(len(zips))],
			g.config.Diseases[g.rand.Intn(len(g.config.Diseases))],
		}
	}
	return models.NewDataset(schema(), rows)
}

func schema() []models.Attribute {
	return []models.Attribute{
		{Name: "name", Role: models.RoleIdentifier},
		{Name: "age", Role: models.RoleQuasiIdentifier, Type: models.DataTypeInteger},
		{Name: "sex", Role: models.RoleQuasiIdentifier},
		{Name: "zip", Role: models.RoleQuasiIdentifier},
		{Name: "disease", Role: models.RoleSensitive},
	}
}

// Save writes census.csv and a job file that anonymizes it
func (g *Generator) Save(ctx context.Context, ds *models.Dataset) error {
	engine := export.NewExportEngine(g.logger)
	release := &interfaces.Release{RunID: "test-data", Dataset: ds}
	dataPath := filepath.Join(g.config.OutputDir, "census.csv")
	if err := engine.ExportToFile(ctx, release, export.FormatCSV, dataPath, export.DefaultOptions()); err != nil {
		return err
	}

	v := viper.New()
	v.Set("input.path", "census.csv")
	v.Set("attributes", []map[string]interface{}{
		{"name": "name", "role": "identifier"},
		{"name": "age", "role": "quasi_identifier", "type": "integer",
			"hierarchy": map[string]interface{}{"type": "interval", "widths": []float64{5, 10, 20}, "top": true}},
		{"name": "sex", "role": "quasi_identifier",
			"hierarchy": map[string]interface{}{"type": "mask", "top": true}},
		{"name": "zip", "role": "quasi_identifier",
			"hierarchy": map[string]interface{}{"type": "redaction", "order": "right_to_left"}},
		{"name": "disease", "role": "sensitive"},
	})
	v.Set("privacy_models", []map[string]interface{}{
		{"type": "k_anonymity", "k": 5},
		{"type": "entropy_l_diversity", "attribute": "disease", "l": 3},
	})
	v.Set("suppression.limit", 0.05)
	v.Set("metric.kind", "loss")
	v.Set("output.path", "result/released.csv")
	return v.WriteConfigAs(filepath.Join(g.config.OutputDir, "job.yaml"))
}
