/*
Package spec defines the event specification model delivered by the schema
service and the translation from its compact wire encoding.

# Wire and Internal Forms

The service sends short field names to keep responses small:

	{
	  "events": [
	    {"b": "main", "eventId": "evt_1", "vids": ["evt_1.v1"],
	     "p": {"method": {"t": "string", "r": true, "p": {"email": ["evt_1"]}}}}
	  ],
	  "metadata": {"schemaId": "s", "branchId": "main", "latestActionId": "a"}
	}

ParseResponse decodes that payload into the Wire* records and translates them
into Response, Entry and Constraints, which carry descriptive names. The wire
records are not retained.

# Tolerance

Translation never fails because of a single bad field. A constraint map with
the wrong shape, an entry that is not an object, or a child constraint that
cannot be decoded is dropped and the rest of the response is kept. Only a body
that is not a JSON object is rejected.

# Constraint Kinds

A Constraints node carries at most one of PinnedValues, AllowedValues,
RegexPatterns and MinMaxRanges. When the wire form carries several, the first
in that order wins and the others are discarded.
*/
package spec
