// Package hcl provides the concrete HCL implementation of the config.Loader
// and config.Writer interfaces. It is responsible for file discovery,
// parsing, HCL-to-model translation and writing definitions back out.
//
// A job file looks like this:
//
//	format_version = 2
//
//	job "customers" {
//	  datastore = "main"
//	  table     = "customers"
//	}
//
//	source_column "email" {
//	  number = 1
//	  type   = string
//	}
//
//	filter "null-check" "email_present" {
//	  properties {
//	    consider_empty_string_as_null = true
//	  }
//	  columns {
//	    columns = ["email"]
//	  }
//	}
//
//	analyzer "string-analyzer" "email_stats" {
//	  columns {
//	    columns = ["email"]
//	  }
//	  requires {
//	    component = "email_present"
//	    outcome   = "NOT_NULL"
//	  }
//	}
//
// Transformer outputs are referenced as "<transformer>.<output>".
package hcl
