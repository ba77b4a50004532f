package db

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"gorm.io/gorm"
)

// Backup writes a consistent, zstd compressed snapshot of the database to
// dest. The snapshot is taken with VACUUM INTO so concurrent writers are
// not blocked for the duration of the copy.
func Backup(ctx context.Context, db *gorm.DB, dest string) error {
	tmp := dest + ".tmp"
	os.Remove(tmp)
	defer os.Remove(tmp)

	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", tmp).Error; err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	src, err := os.Open(tmp)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	partial := dest + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		out.Close()
		os.Remove(partial)
		return fmt.Errorf("create encoder: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		out.Close()
		os.Remove(partial)
		return fmt.Errorf("compress backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		os.Remove(partial)
		return fmt.Errorf("flush backup: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("close backup: %w", err)
	}
	return os.Rename(partial, dest)
}

// Restore decompresses a backup written by Backup into dest
func Restore(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer dec.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		return fmt.Errorf("decompress backup: %w", err)
	}
	return out.Close()
}
