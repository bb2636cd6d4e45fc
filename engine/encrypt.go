// seehuhn.de/go/pdfgraph - an object graph model for PDF documents
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package engine

import (
	"fmt"

	"github.com/xdg-go/stringprep"

	"seehuhn.de/go/pdfgraph"
)

// Permissions lists the operations which a user who opens an encrypted
// file with the user password is allowed to perform.
type Permissions struct {
	Accessibility    bool // extract content for accessibility
	Extract          bool // copy text and graphics
	ModifyAssembly   bool // insert, rotate or delete pages
	ModifyAnnotation bool // add or modify annotations
	ModifyForm       bool // fill in form fields
	ModifyOther      bool // other modifications
	PrintLowRes      bool // print at low resolution
	PrintHighRes     bool // print at full resolution
}

// AllowAll returns permissions which grant every operation.
func AllowAll() Permissions {
	return Permissions{
		Accessibility:    true,
		Extract:          true,
		ModifyAssembly:   true,
		ModifyAnnotation: true,
		ModifyForm:       true,
		ModifyOther:      true,
		PrintLowRes:      true,
		PrintHighRes:     true,
	}
}

// P returns the value of the /P entry of the encryption dictionary, for
// the security handler revision R.  See table 22 of ISO 32000-2:2020.
//
// Revision 2 knows only bits 3 to 6, all other grants are implied by
// these.
func (p Permissions) P(R int) int32 {
	forbidden := uint32(3)
	deny := func(bit int, granted bool) {
		if !granted {
			forbidden |= 1 << (bit - 1)
		}
	}
	deny(3, p.PrintLowRes || p.PrintHighRes)
	deny(4, p.ModifyOther)
	deny(5, p.Extract)
	deny(6, p.ModifyAnnotation)
	if R >= 3 {
		deny(9, p.ModifyForm || p.ModifyAnnotation)
		deny(10, p.Accessibility || p.Extract)
		deny(11, p.ModifyAssembly || p.ModifyOther)
		deny(12, p.PrintHighRes)
	}
	return int32(^forbidden)
}

// PermissionsFromP decodes the /P entry of an encryption dictionary.
func PermissionsFromP(R int, P int32) Permissions {
	bit := func(n int) bool {
		return uint32(P)&(1<<(n-1)) != 0
	}
	p := Permissions{
		PrintLowRes:      bit(3),
		ModifyOther:      bit(4),
		Extract:          bit(5),
		ModifyAnnotation: bit(6),
	}
	if R >= 3 {
		p.ModifyForm = bit(9)
		p.Accessibility = bit(10)
		p.ModifyAssembly = bit(11)
		p.PrintHighRes = bit(12)
	} else {
		p.ModifyForm = p.ModifyAnnotation
		p.Accessibility = p.Extract
		p.ModifyAssembly = p.ModifyOther
		p.PrintHighRes = p.PrintLowRes
	}
	return p
}

// EncryptionParams describe the standard security handler to use for an
// encrypted file.
type EncryptionParams struct {
	// R is the revision of the standard security handler, 2 to 6.
	// Revision 5 is deprecated but still accepted.
	R int `validate:"min=2,max=6"`

	Owner string // owner password
	User  string // user password

	// Allow lists the operations granted to users.
	Allow Permissions

	// AES selects AES encryption instead of RC4.  If nil, AES is used
	// for R >= 4.
	AES *bool

	// Metadata selects whether the XMP metadata stream is encrypted.  If
	// nil, metadata is encrypted for R >= 4.
	Metadata *bool
}

// UseAES reports whether AES encryption is selected.
func (ep *EncryptionParams) UseAES() bool {
	if ep.AES != nil {
		return *ep.AES
	}
	return ep.R >= 4
}

// EncryptMetadata reports whether the metadata stream is encrypted.
func (ep *EncryptionParams) EncryptMetadata() bool {
	if ep.Metadata != nil {
		return *ep.Metadata
	}
	return ep.R >= 4
}

// Validate checks the parameters for consistency.
func (ep *EncryptionParams) Validate() error {
	if err := validate.Struct(ep); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if ep.AES != nil && *ep.AES && ep.R < 4 {
		return fmt.Errorf("%w: AES encryption requires R >= 4, not R = %d",
			ErrInvalidOptions, ep.R)
	}
	if ep.Metadata != nil && ep.R < 4 {
		return fmt.Errorf("%w: the metadata setting requires R >= 4, not R = %d",
			ErrInvalidOptions, ep.R)
	}
	if ep.R == 6 && !ep.UseAES() {
		return fmt.Errorf("%w: R = 6 requires AES encryption", ErrInvalidOptions)
	}
	if !ep.EncryptMetadata() && ep.R >= 4 && !ep.UseAES() {
		return fmt.Errorf("%w: unencrypted metadata requires AES encryption",
			ErrInvalidOptions)
	}
	_, _, err := ep.PreparedPasswords()
	return err
}

// PreparedPasswords returns the byte sequences used as owner and user
// password by the security handler.  For R <= 4 the passwords are
// encoded using PDFDocEncoding and padded to 32 bytes, for R >= 5 they
// are prepared with SASLprep and truncated to 127 bytes.
func (ep *EncryptionParams) PreparedPasswords() (owner, user []byte, err error) {
	prep := padPasswd
	if ep.R >= 5 {
		prep = utf8Passwd
	}
	owner, err = prep(ep.Owner)
	if err != nil {
		return nil, nil, fmt.Errorf("owner password: %w", err)
	}
	user, err = prep(ep.User)
	if err != nil {
		return nil, nil, fmt.Errorf("user password: %w", err)
	}
	return owner, user, nil
}

func utf8Passwd(passwd string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(passwd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pdfgraph.ErrPassword, err)
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

func padPasswd(passwd string) ([]byte, error) {
	buf, ok := pdfgraph.EncodePDFDoc(passwd)
	if !ok {
		return nil, fmt.Errorf("%w: password cannot be represented in PDFDocEncoding",
			pdfgraph.ErrEncoding)
	}
	if len(buf) > 32 {
		buf = buf[:32]
	}
	padded := make([]byte, 32)
	n := copy(padded, buf)
	copy(padded[n:], passwdPad)
	return padded, nil
}

var passwdPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}
