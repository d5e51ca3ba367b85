package sandbox

// prelude runs before user code; it builds the frozen context globals and the helpers
const prelude = `
var __deepFreeze = function (o) {
  if (o !== null && typeof o === 'object' && !Object.isFrozen(o)) {
    Object.freeze(o);
    Object.getOwnPropertyNames(o).forEach(function (k) { __deepFreeze(o[k]); });
  }
  return o;
};

var utils = __deepFreeze({
  get: function (obj, path, fallback) {
    if (obj === null || obj === undefined || typeof path !== 'string') return fallback;
    var cur = obj;
    var parts = path.split('.');
    for (var i = 0; i < parts.length; i++) {
      if (cur === null || cur === undefined) return fallback;
      cur = cur[parts[i]];
    }
    return cur === undefined ? fallback : cur;
  },
  formatDate: function (value, format) {
    var d = value === undefined ? new Date() : new Date(value);
    if (isNaN(d.getTime())) return null;
    var iso = d.toISOString();
    switch (format) {
      case 'date': return iso.slice(0, 10);
      case 'time': return iso.slice(11, 19);
      case 'unix': return Math.floor(d.getTime() / 1000);
      default: return iso;
    }
  }
});

var context = __deepFreeze(JSON.parse(__contextJSON));
var event = context.event;
var request = context.request;
__contextJSON = undefined;

var __serialize = function (v) {
  if (v === undefined) return 'null';
  var s = JSON.stringify(v);
  if (s === undefined) throw new TypeError('output of type ' + typeof v + ' cannot be serialized');
  return s;
};
`
