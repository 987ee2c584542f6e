package dav

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"

	"torboxdav/pkg/vfs"
)

const multistatusHeader = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:">
`

// writeMultistatus writes a complete multistatus document with one response per entry
func writeMultistatus(buf *bytes.Buffer, entries []vfs.Entry) {
	buf.WriteString(multistatusHeader)
	for _, e := range entries {
		switch n := e.Node.(type) {
		case vfs.Folder:
			directoryResponse(buf, e.Path, n.Name)
		case vfs.File:
			fileResponse(buf, e.Path, n.Name, n.Size)
		}
	}
	buf.WriteString(`</d:multistatus>`)
}

// directoryResponse writes a collection response. The href always ends with a slash.
func directoryResponse(buf *bytes.Buffer, path, name string) {
	buf.WriteString(`<d:response>
	<d:href>`)
	buf.WriteString(hrefFor(path, true))
	buf.WriteString(`</d:href>
	<d:propstat>
		<d:prop>
`)
	displayName(buf, name)
	buf.WriteString(`			<d:resourcetype>
				<d:collection/>
			</d:resourcetype>
		</d:prop>
		<d:status>HTTP/1.1 200 OK</d:status>
	</d:propstat>
</d:response>
`)
}

// fileResponse writes a non-collection response with its content length
func fileResponse(buf *bytes.Buffer, path, name string, size int64) {
	buf.WriteString(`<d:response>
	<d:href>`)
	buf.WriteString(hrefFor(path, false))
	buf.WriteString(`</d:href>
	<d:propstat>
		<d:prop>
`)
	displayName(buf, name)
	buf.WriteString(`			<d:getcontentlength>`)
	buf.WriteString(strconv.FormatInt(size, 10))
	buf.WriteString(`</d:getcontentlength>
			<d:resourcetype></d:resourcetype>
		</d:prop>
		<d:status>HTTP/1.1 200 OK</d:status>
	</d:propstat>
</d:response>
`)
}

func displayName(buf *bytes.Buffer, name string) {
	if name == "" {
		return
	}
	buf.WriteString(`			<d:displayname>`)
	_ = xml.EscapeText(buf, []byte(name))
	buf.WriteString("</d:displayname>\n")
}

var hrefReplacer = strings.NewReplacer(
	"$", "%24",
	"&", "%26",
	"+", "%2B",
	":", "%3A",
	"=", "%3D",
	"@", "%40",
)

// hrefFor percent-encodes every component of a normalized path
func hrefFor(path string, folder bool) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}

	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		parts[i] = hrefReplacer.Replace(url.PathEscape(part))
	}

	href := "/" + strings.Join(parts, "/")
	if folder {
		href += "/"
	}
	return href
}
