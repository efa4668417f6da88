package urls

// APIPrefix is shared by every versioned endpoint.
const APIPrefix = "/api/v1"

// Login exchanges email and password for a bearer token.
const Login = APIPrefix + "/users/login"

// Devices lists devices (GET), creates one (POST) or replaces one (PUT).
const Devices = APIPrefix + "/devices"

// Health answers unauthenticated reachability probes.
const Health = APIPrefix + "/health"

// Events is the websocket path of the status event stream.
const Events = "/events"

// StatusRequests accepts status change requests from event stream clients.
const StatusRequests = "/status"

// MDNSService is the DNS-SD service type fleet API gateways advertise.
const MDNSService = "_fleetapi._tcp"

// MDNSDomain is the mDNS browse domain.
const MDNSDomain = "local."

// Query parameters of the device list.
const (
	ParamPage     = "page"
	ParamPageSize = "page_size"
	ParamKeyword  = "keyword"
	ParamStatus   = "dev_status"
	ParamDevID    = "dev_id"
)
