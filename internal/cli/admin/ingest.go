package admin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/extract"
	"github.com/cloo-solutions/kbchat/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const seedTenant = "adhub"

// documentMeta is the metadata applied to every document of one ingest run.
type documentMeta struct {
	tenantID string
	section  string
	docType  string
	version  string
}

func (m documentMeta) document(source, content string) domain.Document {
	return domain.Document{
		TenantID: m.tenantID,
		Content:  content,
		Source:   source,
		Section:  m.section,
		DocType:  m.docType,
		Version:  m.version,
	}
}

// objectSource lists and reads stored documents.
type objectSource interface {
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var (
		meta     documentMeta
		s3Prefix string
		seed     bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Chunk, embed and store documents",
		Long: `Extract text from local files or S3 objects, split it into chunks, embed
each chunk and store it for the given tenant.

Supported formats: .txt .md .csv .html .pdf .docx .odt .rtf

Examples:
  kbchatd ingest --tenant acme docs/*.md
  kbchatd ingest --tenant acme --s3-prefix handbook/
  kbchatd ingest --seed
  kbchatd ingest --seed --tenant acme docs/faq.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromS3 := cmd.Flags().Changed("s3-prefix")
			if err := validateIngestArgs(meta, args, fromS3, seed); err != nil {
				return err
			}
			return runIngest(cmd, meta, args, fromS3, s3Prefix, seed)
		},
	}

	cmd.Flags().StringVarP(&meta.tenantID, "tenant", "t", "", "Tenant the documents belong to")
	cmd.Flags().StringVar(&meta.section, "section", "", "Section label for every document")
	cmd.Flags().StringVar(&meta.docType, "doc-type", "", "Document type label for every document")
	cmd.Flags().StringVar(&meta.version, "version", "", "Version label for every document")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "Ingest objects under this prefix of the configured S3 bucket (\"\" for all)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Ingest the built-in demo documents for tenant "+seedTenant)

	return cmd
}

// validateIngestArgs checks that there is something to ingest and that
// caller-supplied documents have a tenant. Seed documents always belong to
// the seed tenant and never borrow --tenant.
func validateIngestArgs(meta documentMeta, files []string, fromS3, seed bool) error {
	if !seed && !fromS3 && len(files) == 0 {
		return errors.New("nothing to ingest: pass files, --s3-prefix or --seed")
	}
	if (fromS3 || len(files) > 0) && meta.tenantID == "" {
		return errors.New("--tenant is required")
	}
	return nil
}

// localDocuments gathers the seed documents and the given files. Files are
// stored under meta.tenantID; seed documents keep their own tenant.
func localDocuments(meta documentMeta, files []string, seed bool, log *zap.Logger) ([]domain.Document, error) {
	var docs []domain.Document
	if seed {
		docs = append(docs, seedDocuments()...)
	}
	fileDocs, err := documentsFromFiles(files, meta, log)
	if err != nil {
		return nil, err
	}
	return append(docs, fileDocs...), nil
}

func runIngest(cmd *cobra.Command, meta documentMeta, files []string, fromS3 bool, prefix string, seed bool) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close()
	ctx = rt.withLogger(ctx)

	docs, err := localDocuments(meta, files, seed, rt.log)
	if err != nil {
		return err
	}

	if fromS3 {
		if !rt.cfg.HasS3() {
			return errors.New("S3 is not configured (set KBCHAT_S3_ENDPOINT and credentials)")
		}
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        rt.cfg.S3Endpoint,
			Region:          rt.cfg.S3Region,
			AccessKeyID:     rt.cfg.S3AccessKey,
			SecretAccessKey: rt.cfg.S3SecretKey,
			Bucket:          rt.cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return err
		}
		s3Docs, err := documentsFromObjects(ctx, client, prefix, meta, rt.log)
		if err != nil {
			return err
		}
		docs = append(docs, s3Docs...)
	}

	if len(docs) == 0 {
		return errors.New("no supported documents found")
	}

	result, err := rt.ingestService().Ingest(ctx, docs)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents (%d chunks)\n", len(docs), result.Inserted)
	return nil
}

// documentsFromFiles extracts text from local files. Unsupported extensions
// are skipped with a warning; unreadable supported files are errors.
func documentsFromFiles(paths []string, meta documentMeta, log *zap.Logger) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		if !extract.Supported(path) {
			log.Warn("skipping unsupported file", zap.String("path", path))
			continue
		}
		text, err := extract.File(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		if strings.TrimSpace(text) == "" {
			log.Warn("skipping empty file", zap.String("path", path))
			continue
		}
		docs = append(docs, meta.document(filepath.Base(path), text))
	}
	return docs, nil
}

// documentsFromObjects extracts text from every supported object under prefix.
func documentsFromObjects(ctx context.Context, src objectSource, prefix string, meta documentMeta, log *zap.Logger) ([]domain.Document, error) {
	objects, err := src.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	for _, obj := range objects {
		if !extract.Supported(obj.Key) {
			log.Debug("skipping unsupported object", zap.String("key", obj.Key))
			continue
		}
		data, err := src.GetObject(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		text, err := extract.Bytes(obj.Key, data)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", obj.Key, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, meta.document(obj.Key, text))
	}

	log.Info("loaded documents from s3", zap.String("prefix", prefix), zap.Int("objects", len(objects)), zap.Int("documents", len(docs)))
	return docs, nil
}

// seedDocuments is a small demo knowledge base.
func seedDocuments() []domain.Document {
	return []domain.Document{
		{
			TenantID: seedTenant,
			Source:   "Getting Started",
			Section:  "Campaigns",
			DocType:  "guide",
			Version:  "v1",
			Content:  "To add a new campaign, go to the Campaigns tab and click \"New Campaign\".\nFill in name, budget, and schedule. Click Save to create the campaign.",
		},
		{
			TenantID: seedTenant,
			Source:   "Permissions",
			Section:  "Roles",
			DocType:  "policy",
			Version:  "v1",
			Content:  "Only Admins and Managers can create campaigns. Editors can edit but not create.",
		},
	}
}
