// Package settings models HTTP/2 SETTINGS values as seen by the event model.
//
// Setting identifiers are golang.org/x/net/http2 SettingID values. Every
// 16-bit identifier is representable, so identifiers outside the registered
// set are carried as raw numbers instead of being rejected.
//
// The package provides three things:
//
//   - ChangedSetting and Changes: the point-in-time diff carried by
//     RemoteSettingsChanged and SettingsAcknowledged events.
//   - Diff: builds Changes from a complete prior snapshot and the values
//     announced in one SETTINGS frame.
//   - Snapshot: an immutable, complete view of one peer's settings, including
//     protocol defaults, that diffs are computed against.
//
// Basic usage:
//
//	prior := settings.DefaultSnapshot(true)
//	changes := prior.Diff(map[http2.SettingID]uint32{
//		http2.SettingHeaderTableSize: 8192,
//	})
//	next := prior.With(changes)
package settings
