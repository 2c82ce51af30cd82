// Package exporter serves selected status buffer fields as Prometheus
// metrics.
//
// Every scrape reads a fresh snapshot of each instance and projects the
// configured fields onto one gauge family:
//
//	hashpipe_status_buffer{domain="bluse",hpinstance="blpn48/0",name="RA"} 156.3626
//	hashpipe_status_buffer{domain="bluse",hpinstance="blpn48/0",name="SRC_NAME",value="3C295"} 1
//
// String fields carry their text in the value label and report 1. The same
// registry also carries the gateway's own publish and command counters.
//
// The Server mounts an index page on "/" and the metrics on "/metrics",
// gzip-encoded when the client accepts it.
package exporter
