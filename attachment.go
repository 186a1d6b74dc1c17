// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package couch

import "encoding/base64"

// Attachment is a document attachment: raw bytes plus their MIME content
// type.
type Attachment struct {
	ContentType string
	Data        []byte
}

// EncodeAttachment encodes att for inline use in a document's
// "_attachments" member, with the data base64-encoded:
//
//	doc["_attachments"] = map[string]interface{}{
//		"thumbnail": couch.EncodeAttachment(att),
//	}
func EncodeAttachment(att *Attachment) map[string]interface{} {
	return map[string]interface{}{
		"content_type": att.ContentType,
		"data":         base64.StdEncoding.EncodeToString(att.Data),
	}
}

// HasAttachment reports whether doc carries an attachment named name,
// inline or as a stub.
func HasAttachment(doc Doc, name string) bool {
	atts, ok := doc["_attachments"].(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = atts[name]
	return ok
}
