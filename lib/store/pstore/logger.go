package pstore

import "github.com/lni/dragonboat/v4/logger"

var Logger = logger.GetLogger("store")
