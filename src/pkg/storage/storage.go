/*
Package storage keeps the uploaded product images the poster editor works
with: auto-increment ids, the encoded image blob, upload timestamp and the
price recognition derived for it.

Blobs are brotli-compressed at rest. When the store grows past its cap the
oldest records are trimmed away so the history stays bounded.
*/
package storage

import (
	"bytes"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
	_ "modernc.org/sqlite"
)

// StoredImage is one record of the image history.
type StoredImage struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Price     string `json:"price,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

type Store struct {
	db         *sql.DB
	maxImages  int
	keepOnTrim int
}

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	price      TEXT NOT NULL DEFAULT '',
	data       BLOB NOT NULL
);
`

/*
Open opens (creating if needed) the SQLite store described by cfg.
*/
func Open(cfg Config) (store *Store, e *xerr.Error) {
	mkdirErr := os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
	if mkdirErr != nil {
		e = xerr.NewError(mkdirErr, "create storage directory", cfg.Path)
		return nil, e
	}

	db, openErr := sql.Open("sqlite", cfg.Path)
	if openErr != nil {
		e = xerr.NewError(openErr, "open image store", cfg.Path)
		return nil, e
	}

	_, execErr := db.Exec(schema)
	if execErr != nil {
		_ = db.Close()
		e = xerr.NewError(execErr, "create images table", cfg.Path)
		return nil, e
	}

	tl.Log(tl.Info, palette.Green, "Opened image store at '%s'", cfg.Path)

	return &Store{db: db, maxImages: cfg.MaxImages, keepOnTrim: cfg.KeepOnTrim}, nil
}

func (s *Store) Close() {
	_ = s.db.Close()
}

/*
AddImage stores an encoded image blob under a fresh auto-increment id and
returns that id. The price field starts empty; recognition attaches it
later. Past the cap, the oldest records are trimmed.
*/
func (s *Store) AddImage(data []byte, name string) (id int64, e *xerr.Error) {
	compressed, e := compressBlob(data)
	if e != nil {
		return 0, e
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)

	result, execErr := s.db.Exec(
		`INSERT INTO images (name, created_at, data) VALUES (?, ?, ?)`,
		name, timestamp, compressed,
	)
	if execErr != nil {
		e = xerr.NewError(execErr, "insert image record", name)
		return 0, e
	}

	id, idErr := result.LastInsertId()
	if idErr != nil {
		e = xerr.NewError(idErr, "read inserted image id", name)
		return 0, e
	}

	tl.Log(
		tl.Info1, palette.Green, "Stored image '%s' as id '%s' ('%s' -> '%s' bytes)",
		name, strconv.FormatInt(id, 10), strconv.Itoa(len(data)), strconv.Itoa(len(compressed)),
	)

	s.trimOldest()

	return id, nil
}

// AttachPrice writes the recognized price onto an existing record.
func (s *Store) AttachPrice(id int64, price string) (e *xerr.Error) {
	_, execErr := s.db.Exec(`UPDATE images SET price = ? WHERE id = ?`, price, id)
	if execErr != nil {
		e = xerr.NewError(execErr, "attach price to image record", id)
		return e
	}

	tl.Log(tl.Info1, palette.Green, "Attached price '%s' to image '%s'", price, strconv.FormatInt(id, 10))
	return e
}

// GetImage loads one record, blob included.
func (s *Store) GetImage(id int64) (img StoredImage, e *xerr.Error) {
	var compressed []byte
	row := s.db.QueryRow(`SELECT id, name, created_at, price, data FROM images WHERE id = ?`, id)
	scanErr := row.Scan(&img.ID, &img.Name, &img.Timestamp, &img.Price, &compressed)
	if scanErr != nil {
		e = xerr.NewError(scanErr, "load image record", id)
		return img, e
	}

	img.Data, e = decompressBlob(compressed)
	return img, e
}

/*
List returns one page of records, newest first, optionally filtered by a
case-insensitive name substring, together with the total number of
matching records. Blobs are not included; fetch them with GetImage.
*/
func (s *Store) List(page int, pageSize int, query string) (images []StoredImage, total int, e *xerr.Error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 8
	}

	like := "%" + query + "%"

	countRow := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE name LIKE ?`, like)
	if countErr := countRow.Scan(&total); countErr != nil {
		e = xerr.NewError(countErr, "count image records", query)
		return nil, 0, e
	}

	rows, queryErr := s.db.Query(
		`SELECT id, name, created_at, price FROM images WHERE name LIKE ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`,
		like, pageSize, (page-1)*pageSize,
	)
	if queryErr != nil {
		e = xerr.NewError(queryErr, "list image records", query)
		return nil, 0, e
	}
	defer rows.Close()

	for rows.Next() {
		var img StoredImage
		if scanErr := rows.Scan(&img.ID, &img.Name, &img.Timestamp, &img.Price); scanErr != nil {
			e = xerr.NewError(scanErr, "scan image record", query)
			return nil, 0, e
		}
		images = append(images, img)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		e = xerr.NewError(rowsErr, "iterate image records", query)
		return nil, 0, e
	}

	return images, total, nil
}

// AllIDs returns every record id in insertion order, for seeding the panel
// registry at startup.
func (s *Store) AllIDs() (ids []int64, e *xerr.Error) {
	rows, queryErr := s.db.Query(`SELECT id FROM images ORDER BY id ASC`)
	if queryErr != nil {
		e = xerr.NewError(queryErr, "list image ids", nil)
		return nil, e
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if scanErr := rows.Scan(&id); scanErr != nil {
			e = xerr.NewError(scanErr, "scan image id", nil)
			return nil, e
		}
		ids = append(ids, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		e = xerr.NewError(rowsErr, "iterate image ids", nil)
		return nil, e
	}

	return ids, nil
}

// Delete removes one record.
func (s *Store) Delete(id int64) (e *xerr.Error) {
	_, execErr := s.db.Exec(`DELETE FROM images WHERE id = ?`, id)
	if execErr != nil {
		e = xerr.NewError(execErr, "delete image record", id)
		return e
	}

	tl.Log(tl.Info1, palette.Green, "Deleted image '%s'", strconv.FormatInt(id, 10))
	return e
}

// trimOldest drops the oldest records once the store exceeds its cap.
// Trim failures are logged, never fatal: a full history beats a lost upload.
func (s *Store) trimOldest() {
	if s.maxImages <= 0 {
		return
	}

	var total int
	if countErr := s.db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&total); countErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Could not count images for trim: '%s'", countErr)
		return
	}
	if total <= s.maxImages {
		return
	}

	keep := s.keepOnTrim
	if keep <= 0 || keep > s.maxImages {
		keep = s.maxImages
	}

	_, execErr := s.db.Exec(
		`DELETE FROM images WHERE id IN (SELECT id FROM images ORDER BY id ASC LIMIT ?)`,
		total-keep,
	)
	if execErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Could not trim old images: '%s'", execErr)
		return
	}

	tl.Log(tl.Info, palette.Cyan, "Trimmed image store from '%s' to '%s' records", strconv.Itoa(total), strconv.Itoa(keep))
}

func compressBlob(data []byte) (compressed []byte, e *xerr.Error) {
	var buf bytes.Buffer
	writer := brotli.NewWriter(&buf)

	if _, writeErr := writer.Write(data); writeErr != nil {
		e = xerr.NewError(writeErr, "compress image blob", len(data))
		return nil, e
	}
	if closeErr := writer.Close(); closeErr != nil {
		e = xerr.NewError(closeErr, "finish image blob compression", len(data))
		return nil, e
	}

	return buf.Bytes(), nil
}

func decompressBlob(compressed []byte) (data []byte, e *xerr.Error) {
	reader := brotli.NewReader(bytes.NewReader(compressed))

	data, readErr := io.ReadAll(reader)
	if readErr != nil {
		e = xerr.NewError(readErr, "decompress image blob", len(compressed))
		return nil, e
	}

	return data, nil
}
