package adapters

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ArchiveExtractorAdapter unpacks tar.gz, tar.xz, plain tar and zip
// artifacts. It reports every path it created, in creation order, so
// the caller can journal them for rollback. Entries that would escape
// the destination directory abort the extraction.
type ArchiveExtractorAdapter struct{}

func NewArchiveExtractorAdapter() ArchiveExtractorAdapter {
	return ArchiveExtractorAdapter{}
}

func (a ArchiveExtractorAdapter) Extract(ctx context.Context, archivePath string, destDir string, stripPrefix string) ([]string, error) {
	writer := newTreeWriter(destDir)
	lower := strings.ToLower(archivePath)
	var err error
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		err = a.extractTar(ctx, archivePath, stripPrefix, writer, decompressGzip)
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		err = a.extractTar(ctx, archivePath, stripPrefix, writer, decompressXz)
	case strings.HasSuffix(lower, ".tar"):
		err = a.extractTar(ctx, archivePath, stripPrefix, writer, nil)
	case strings.HasSuffix(lower, ".zip"):
		err = a.extractZip(ctx, archivePath, stripPrefix, writer)
	default:
		err = errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported archive format: %s", filepath.Base(archivePath)))
	}
	return writer.created, err
}

func decompressGzip(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

func decompressXz(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}

func (a ArchiveExtractorAdapter) extractTar(ctx context.Context, archivePath string, stripPrefix string, writer *treeWriter, decompress func(io.Reader) (io.Reader, error)) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("cannot open archive").
			WithCause(err)
	}
	defer archiveFile.Close()

	var stream io.Reader = archiveFile
	if decompress != nil {
		stream, err = decompress(archiveFile)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("cannot read compressed archive").
				WithCause(err)
		}
		if closer, ok := stream.(io.Closer); ok {
			defer closer.Close()
		}
	}

	tarReader := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name, keep := stripEntryPrefix(header.Name, stripPrefix)
		if !keep || name == "" {
			continue
		}
		target, err := writer.resolve(name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := writer.ensureDir(target); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			mode := header.FileInfo().Mode().Perm()
			if err := writer.writeFile(target, mode, tarReader); err != nil {
				return fmt.Errorf("write file %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := writer.writeSymlink(target, header.Linkname); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
		default:
			// Device nodes and the like are not artifact content.
			continue
		}
	}
}

func (a ArchiveExtractorAdapter) extractZip(ctx context.Context, archivePath string, stripPrefix string, writer *treeWriter) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("cannot open zip archive").
			WithCause(err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, keep := stripEntryPrefix(entry.Name, stripPrefix)
		if !keep || name == "" {
			continue
		}
		target, err := writer.resolve(name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := writer.ensureDir(target); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}
		content, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
		}
		writeErr := writer.writeFile(target, entry.Mode().Perm(), content)
		content.Close()
		if writeErr != nil {
			return fmt.Errorf("write file %s: %w", target, writeErr)
		}
	}
	return nil
}

// stripEntryPrefix normalizes an archive entry name and drops the
// configured leading path. Entries outside the prefix are skipped
// rather than treated as errors: archives often carry a top-level
// directory plus stray metadata entries.
func stripEntryPrefix(entryName string, stripPrefix string) (string, bool) {
	name := path.Clean(strings.TrimPrefix(entryName, "./"))
	if name == "." || name == "/" {
		return "", true
	}
	prefix := strings.Trim(strings.TrimSpace(stripPrefix), "/")
	if prefix == "" {
		return name, true
	}
	if name == prefix {
		return "", true
	}
	if strings.HasPrefix(name, prefix+"/") {
		return name[len(prefix)+1:], true
	}
	return "", false
}

// treeWriter materializes archive entries under a root directory,
// remembering each path it created.
type treeWriter struct {
	root    string
	known   map[string]bool
	created []string
}

func newTreeWriter(root string) *treeWriter {
	return &treeWriter{
		root:  filepath.Clean(root),
		known: map[string]bool{},
	}
}

// resolve maps a slash-separated entry name onto the destination tree
// and rejects names that would land outside it.
func (w *treeWriter) resolve(name string) (string, error) {
	target := filepath.Join(w.root, filepath.FromSlash(name))
	if !strings.HasPrefix(target, w.root+string(os.PathSeparator)) {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive entry escapes destination: %s", name))
	}
	return target, nil
}

func (w *treeWriter) ensureDir(dir string) error {
	if dir == w.root || len(dir) < len(w.root) || w.known[dir] {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		w.known[dir] = true
		return nil
	}
	if err := w.ensureDir(filepath.Dir(dir)); err != nil {
		return err
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return err
	}
	w.known[dir] = true
	w.created = append(w.created, dir)
	return nil
}

func (w *treeWriter) writeFile(target string, mode os.FileMode, content io.Reader) error {
	if err := w.ensureDir(filepath.Dir(target)); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	w.created = append(w.created, target)
	return nil
}

func (w *treeWriter) writeSymlink(target string, linkName string) error {
	if err := w.ensureDir(filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.Symlink(linkName, target); err != nil {
		return err
	}
	w.created = append(w.created, target)
	return nil
}
