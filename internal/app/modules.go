package app

import (
	"github.com/vk/cleangrid/internal/registry"
	"github.com/vk/cleangrid/modules/concatenator"
	"github.com/vk/cleangrid/modules/equals"
	"github.com/vk/cleangrid/modules/insert_into_table"
	"github.com/vk/cleangrid/modules/null_check"
	"github.com/vk/cleangrid/modules/number_analyzer"
	"github.com/vk/cleangrid/modules/number_range"
	"github.com/vk/cleangrid/modules/row_count"
	"github.com/vk/cleangrid/modules/row_sampler"
	"github.com/vk/cleangrid/modules/string_analyzer"
	"github.com/vk/cleangrid/modules/string_length"
	"github.com/vk/cleangrid/modules/value_distribution"
)

// coreModules is the definitive list of all component modules that are
// compiled into the cleangrid binary.
var coreModules = []registry.Module{
	// filters
	&null_check.Module{},
	&number_range.Module{},
	&equals.Module{},
	// transformers
	&concatenator.Module{},
	&string_length.Module{},
	// analyzers
	&row_count.Module{},
	&string_analyzer.Module{},
	&number_analyzer.Module{},
	&value_distribution.Module{},
	&row_sampler.Module{},
	&insert_into_table.Module{},
}
