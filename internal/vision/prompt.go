package vision

// DefaultPrompt instructs the model how to read a staff gauge with a red
// waterline and a station label. Image 1 is the gauge, image 2 the label.
const DefaultPrompt = `Task: You are given two images in a single prompt.

Image 1: Staff Gauge
- Decide if this is a clear staff-gauge photo.
- If it is not a staff gauge, or if it is too unclear for a confident reading (confidence < 0.70),
  set "is_valid_gauge": false and stop.
- Otherwise, calculate the exact water-level reading at the red line.
- The gauge reading is always a positive floating-point number with 2 decimal places.

Gauge details:
- Major stripes: longer, labeled marks (e.g. 1.0, 1.1, ...).
- Minor stripes: shorter, evenly spaced between two majors.

Step-by-step instructions:
- Detect two consecutive, fully visible major stripes and note their labels (e.g. 1.0 and 1.1).
- Count the minor intervals between them (minor stripes + 1) and compute
  minor_unit = (major2_label - major1_label) / minor_intervals.
  Nine minor stripes between 1.0 and 1.1 give 10 intervals and a minor_unit of 0.01.
- Locate the red waterline.
- Identify the first major stripe above that line and record its label M.
- Count how many minor stripes lie between the waterline and stripe M; call that n.
- Compute reading = M + (n * minor_unit).

Image 2: Station Label
- Analyze the image to verify if it is a valid station label.
- A valid station label contains a station ID that matches one of the predefined station IDs.
- If not valid, respond with "is_valid_station_label": false and "station_id": null.
- If valid, set "is_valid_station_label": true and return the "station_id".

Critical consideration:
- If an image is beyond the ability to analyze, unreadable,
  or if the confidence of the output is below 40%, mark it invalid.`
