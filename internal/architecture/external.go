package architecture

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"archdoc/internal/manifest"
)

// Signature maps package names to an external system. Packages match
// exactly and Prefixes match leading text, both case-insensitively.
type Signature struct {
	Category    Category
	Vendor      string
	Name        string
	Description string
	Technology  string
	Protocol    string
	Packages    []string
	Prefixes    []string
}

// Key returns the dedup key "category:vendor".
func (s Signature) Key() string {
	return string(s.Category) + ":" + s.Vendor
}

// Matches reports whether pkg belongs to this signature.
func (s Signature) Matches(pkg string) bool {
	lower := strings.ToLower(pkg)
	for _, p := range s.Packages {
		if lower == strings.ToLower(p) {
			return true
		}
	}
	for _, p := range s.Prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func (s Signature) system() ExternalSystem {
	return ExternalSystem{
		Key:         s.Key(),
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Technology:  s.Technology,
		Protocol:    s.Protocol,
	}
}

// builtinSignatures is evaluated top to bottom; the first match wins.
var builtinSignatures = []Signature{
	// Databases
	{CategoryDatabase, "postgresql", "PostgreSQL", "Relational database", "PostgreSQL", "SQL/TCP",
		nil, []string{"Npgsql"}},
	{CategoryDatabase, "sqlserver", "SQL Server", "Relational database", "Microsoft SQL Server", "TDS",
		[]string{"EntityFramework", "System.Data.SqlClient", "Microsoft.Data.SqlClient"},
		[]string{"Microsoft.EntityFrameworkCore.SqlServer"}},
	{CategoryDatabase, "mysql", "MySQL", "Relational database", "MySQL", "SQL/TCP",
		[]string{"MySql.Data", "MySqlConnector"}, []string{"Pomelo.EntityFrameworkCore.MySql", "MySql.EntityFrameworkCore"}},
	{CategoryDatabase, "sqlite", "SQLite", "Embedded database file", "SQLite", "file",
		[]string{"System.Data.SQLite", "Microsoft.Data.Sqlite"}, []string{"Microsoft.EntityFrameworkCore.Sqlite"}},
	{CategoryDatabase, "oracle", "Oracle Database", "Relational database", "Oracle", "Oracle Net",
		nil, []string{"Oracle.ManagedDataAccess", "Oracle.EntityFrameworkCore"}},
	{CategoryDatabase, "mongodb", "MongoDB", "Document database", "MongoDB", "MongoDB wire",
		nil, []string{"MongoDB.Driver"}},
	{CategoryDatabase, "redis", "Redis", "In-memory data store", "Redis", "RESP",
		[]string{"StackExchange.Redis", "Microsoft.Extensions.Caching.StackExchangeRedis"}, nil},
	{CategoryDatabase, "cosmosdb", "Azure Cosmos DB", "Globally distributed database", "Azure Cosmos DB", "HTTPS",
		[]string{"Microsoft.Azure.Cosmos", "Microsoft.EntityFrameworkCore.Cosmos"}, nil},

	// Queues
	{CategoryQueue, "rabbitmq", "RabbitMQ", "Message broker", "RabbitMQ", "AMQP",
		[]string{"RabbitMQ.Client", "MassTransit.RabbitMQ", "EasyNetQ", "NServiceBus.RabbitMQ"}, nil},
	{CategoryQueue, "kafka", "Apache Kafka", "Event streaming platform", "Kafka", "Kafka",
		nil, []string{"Confluent.Kafka"}},
	{CategoryQueue, "azure-servicebus", "Azure Service Bus", "Managed message broker", "Azure Service Bus", "AMQP",
		[]string{"Azure.Messaging.ServiceBus", "Microsoft.Azure.ServiceBus", "MassTransit.Azure.ServiceBus.Core"}, nil},
	{CategoryQueue, "aws-sqs", "Amazon SQS", "Managed queue service", "Amazon SQS", "HTTPS",
		[]string{"AWSSDK.SQS"}, nil},

	// Storage
	{CategoryStorage, "azure-blob", "Azure Blob Storage", "Object storage", "Azure Storage", "HTTPS",
		[]string{"Azure.Storage.Blobs", "WindowsAzure.Storage"}, nil},
	{CategoryStorage, "aws-s3", "Amazon S3", "Object storage", "Amazon S3", "HTTPS",
		[]string{"AWSSDK.S3"}, nil},
	{CategoryStorage, "minio", "MinIO", "S3-compatible object storage", "MinIO", "HTTPS",
		[]string{"Minio"}, nil},

	// APIs
	{CategoryAPI, "http-api", "External HTTP API", "Remote service called over HTTP", "REST", "HTTPS",
		[]string{"RestSharp", "Refit", "Flurl.Http", "Microsoft.Extensions.Http"}, []string{"Refit."}},
}

// BuiltinSignatures returns a copy of the built-in table.
func BuiltinSignatures() []Signature {
	out := make([]Signature, len(builtinSignatures))
	copy(out, builtinSignatures)
	return out
}

// Detection is the result of scanning manifests for external systems.
type Detection struct {
	// Systems holds one entry per key, in first-seen order
	Systems []ExternalSystem
	// Usage lists the keys each manifest touches, by manifest path
	Usage map[string][]string
}

// Lookup returns the system for key.
func (d *Detection) Lookup(key string) (ExternalSystem, bool) {
	for _, s := range d.Systems {
		if s.Key == key {
			return s, true
		}
	}
	return ExternalSystem{}, false
}

// Detector matches declared packages against signatures.
type Detector struct {
	signatures []Signature
}

// NewDetector creates a detector. Extra signatures take precedence over the built-in table.
func NewDetector(extra []Signature) *Detector {
	sigs := make([]Signature, 0, len(extra)+len(builtinSignatures))
	sigs = append(sigs, extra...)
	sigs = append(sigs, builtinSignatures...)
	return &Detector{signatures: sigs}
}

// Match returns the first signature matching pkg.
func (d *Detector) Match(pkg string) (Signature, bool) {
	for _, s := range d.signatures {
		if s.Matches(pkg) {
			return s, true
		}
	}
	return Signature{}, false
}

// Detect scans every package of every project. Unmatched packages produce nothing.
func (d *Detector) Detect(projects []*manifest.Project) *Detection {
	det := &Detection{Usage: make(map[string][]string)}
	seen := make(map[string]bool)

	for _, p := range projects {
		used := make(map[string]bool)
		for _, pkg := range p.Packages {
			sig, ok := d.Match(pkg.Name)
			if !ok {
				continue
			}
			key := sig.Key()
			if !seen[key] {
				seen[key] = true
				det.Systems = append(det.Systems, sig.system())
			}
			if !used[key] {
				used[key] = true
				det.Usage[p.Path] = append(det.Usage[p.Path], key)
			}
		}
	}
	return det
}

type signatureFile struct {
	Signatures []struct {
		Category    string   `toml:"category"`
		Vendor      string   `toml:"vendor"`
		Name        string   `toml:"name"`
		Description string   `toml:"description"`
		Technology  string   `toml:"technology"`
		Protocol    string   `toml:"protocol"`
		Packages    []string `toml:"packages"`
		Prefixes    []string `toml:"prefixes"`
	} `toml:"signature"`
}

// LoadSignatureFile reads additional signatures from a TOML file:
//
//	[[signature]]
//	category = "queue"
//	vendor   = "nats"
//	name     = "NATS"
//	packages = ["NATS.Client"]
//
// A missing file yields no signatures and no error.
func LoadSignatureFile(path string) ([]Signature, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	var raw signatureFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	sigs := make([]Signature, 0, len(raw.Signatures))
	for i, s := range raw.Signatures {
		cat, ok := ParseCategory(s.Category)
		if !ok {
			return nil, fmt.Errorf("%s: signature %d: unknown category %q", path, i+1, s.Category)
		}
		if s.Vendor == "" {
			return nil, fmt.Errorf("%s: signature %d: vendor is required", path, i+1)
		}
		if len(s.Packages) == 0 && len(s.Prefixes) == 0 {
			return nil, fmt.Errorf("%s: signature %d: packages or prefixes required", path, i+1)
		}
		name := s.Name
		if name == "" {
			name = s.Vendor
		}
		sigs = append(sigs, Signature{
			Category:    cat,
			Vendor:      s.Vendor,
			Name:        name,
			Description: s.Description,
			Technology:  s.Technology,
			Protocol:    s.Protocol,
			Packages:    s.Packages,
			Prefixes:    s.Prefixes,
		})
	}
	return sigs, nil
}
